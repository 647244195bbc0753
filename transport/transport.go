// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport provides the send-datagram / receive-datagram
// contract the endpoint consumes, and a UDP implementation of it. The
// core never imports net directly; it depends only on this narrow
// interface so a test harness can substitute an in-memory transport.
package transport

import "net"

// MaxDatagramSize is the socket contract's maximum payload.
const MaxDatagramSize = 2048

// Datagram is a single received payload paired with its sender.
type Datagram struct {
	Payload []byte
	From    net.Addr
}

// Conn is the datagram-socket contract: unordered, duplicable, droppable
// delivery, addressed sends, and a receive loop.
type Conn interface {
	// SendTo transmits b to addr.
	SendTo(addr net.Addr, b []byte) error
	// ReceiveFrom blocks for the next inbound datagram.
	ReceiveFrom() (Datagram, error)
	// LocalAddr returns the address this Conn is bound to.
	LocalAddr() net.Addr
	Close() error
}
