// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"net"
	"sync"
)

// ErrClosed is returned by a closed Mem's ReceiveFrom.
var ErrClosed = errors.New("transport: closed")

// memAddr is a net.Addr identifying one endpoint of an in-memory link.
type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// Mem is an in-process Conn, for exercising endpoint logic without a real
// socket. Two Mem values sharing a switchboard can exchange datagrams by
// addressing each other's LocalAddr.
type Mem struct {
	addr memAddr
	hub  *memHub

	mu     sync.Mutex
	closed bool
	inbox  chan Datagram
}

// memHub is the shared registry a set of Mem conns use to resolve
// addresses to inboxes; analogous to a loopback network segment.
type memHub struct {
	mu   sync.Mutex
	byID map[memAddr]*Mem
}

// NewMemHub returns an empty in-memory network segment.
func NewMemHub() *memHub {
	return &memHub{byID: make(map[memAddr]*Mem)}
}

// NewMemConn registers and returns a new Mem endpoint named addr on hub.
func (h *memHub) NewMemConn(addr string) *Mem {
	m := &Mem{addr: memAddr(addr), hub: h, inbox: make(chan Datagram, 64)}
	h.mu.Lock()
	h.byID[m.addr] = m
	h.mu.Unlock()
	return m
}

func (m *Mem) SendTo(addr net.Addr, b []byte) error {
	dst, ok := addr.(memAddr)
	if !ok {
		return errors.New("transport: not a mem address")
	}
	m.hub.mu.Lock()
	target, ok := m.hub.byID[dst]
	m.hub.mu.Unlock()
	if !ok {
		return errors.New("transport: unknown mem address")
	}

	cp := append([]byte(nil), b...)
	target.mu.Lock()
	defer target.mu.Unlock()
	if target.closed {
		return ErrClosed
	}
	select {
	case target.inbox <- Datagram{Payload: cp, From: m.addr}:
		return nil
	default:
		return nil // inbox full: datagram dropped, matching real UDP behavior
	}
}

func (m *Mem) ReceiveFrom() (Datagram, error) {
	dg, ok := <-m.inbox
	if !ok {
		return Datagram{}, ErrClosed
	}
	return dg, nil
}

func (m *Mem) LocalAddr() net.Addr { return m.addr }

func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.inbox)
	return nil
}

var _ Conn = (*Mem)(nil)
