// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package endpoint implements the server and client harnesses that own
// the datagram socket: connection_id ↔ peer_address routing, connection
// establishment, the optional loss-simulation hook at ingress and egress,
// and spawning one ConnectionEngine per connection.
package endpoint

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/rft/connengine"
	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/lossoracle"
	"code.hybscloud.com/rft/streamhandler"
	"code.hybscloud.com/rft/transport"
	"code.hybscloud.com/rft/wire"
)

// Server accepts connections from many clients over a single UDP socket,
// serving files out of Store.
type Server struct {
	conn  transport.Conn
	store fsstore.Store
	loss  *lossoracle.Oracle

	nextConnID uint32

	mu       sync.Mutex
	byConnID map[uint32]*connengine.Engine
	peerOf   map[uint32]net.Addr

	log *logrus.Entry
}

// NewServer returns a Server bound to conn, serving files from store. loss
// may be nil to disable simulated packet loss.
func NewServer(conn transport.Conn, store fsstore.Store, loss *lossoracle.Oracle) *Server {
	return &Server{
		conn:     conn,
		store:    store,
		loss:     loss,
		byConnID: make(map[uint32]*connengine.Engine),
		peerOf:   make(map[uint32]net.Addr),
		log:      logrus.WithField("role", "server"),
	}
}

// Run blocks, demultiplexing inbound datagrams to per-connection engines
// until the socket is closed.
func (s *Server) Run() error {
	for {
		dg, err := s.conn.ReceiveFrom()
		if err != nil {
			return err
		}
		if s.loss != nil && s.loss.Next() {
			continue
		}

		p, err := wire.ParsePacket(dg.Payload)
		if err != nil {
			s.log.Warnf("dropping malformed packet from %s: %v", dg.From, err)
			continue
		}

		if p.ConnectionID == 0 {
			s.accept(p, dg.From)
			continue
		}

		s.mu.Lock()
		e, ok := s.byConnID[p.ConnectionID]
		s.mu.Unlock()
		if !ok {
			s.log.Warnf("unknown connection_id %d from %s", p.ConnectionID, dg.From)
			continue
		}
		e.Deliver(p)
	}
}

func (s *Server) accept(p *wire.Packet, from net.Addr) {
	connID := atomic.AddUint32(&s.nextConnID, 1)
	store := s.store

	e := connengine.NewEngine(connID, func(b []byte) error {
		if s.loss != nil && s.loss.Next() {
			return nil
		}
		return s.conn.SendTo(from, b)
	}, func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) connengine.StreamRunner {
		return streamhandler.New(streamID, store, in, out, acks)
	})

	s.mu.Lock()
	s.byConnID[connID] = e
	s.peerOf[connID] = from
	s.mu.Unlock()

	go e.Run()

	e.Deliver(p)
	// The ConnIdChange tells the newly accepted peer which connection_id
	// to stamp on every subsequent outgoing packet; it arrived addressing
	// connection_id 0 because it had not been assigned one yet.
	e.SubmitFrame(wire.NewConnIdChangeFrame(0, connID))
	e.SubmitFrame(wire.NewFlowControlFrame(connengine.DefaultInitialFlowWindow))
	s.log.Infof("accepted connection %d from %s", connID, from)
}

// Peer returns the address routed for connID, used by callers (e.g. tests,
// or a future admin surface) that need to inspect routing state.
func (s *Server) Peer(connID uint32) (net.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.peerOf[connID]
	return addr, ok
}
