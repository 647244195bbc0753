// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package connengine implements the per-connection RX dispatcher and TX
// pacer: packet sequencing, cumulative/duplicate ACK handling,
// retransmission via a sent-packet ring buffer, TCP-Reno congestion
// control combined with peer-advertised flow control, and frame
// multiplexing across streams.
package connengine

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"code.hybscloud.com/rft/streamhandler"
	"code.hybscloud.com/rft/wire"
)

// wireMaxFrameBudget is MSS (1024) minus the 12-byte packet header.
const wireMaxFrameBudget = 1024 - 12

// StreamRunner is anything that drives a stream's command to completion
// when started in its own goroutine; *streamhandler.Handler satisfies it.
type StreamRunner interface {
	Run()
}

// HandlerFactory builds the stream handler for a newly observed stream_id.
// The engine owns in/out/acks and wires them to the handler; the factory
// only needs to bind the handler's persistence/business logic to them.
type HandlerFactory func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) StreamRunner

// Engine is one connection's RX dispatcher plus TX pacer.
type Engine struct {
	opts Options
	log  *logrus.Entry

	// Send transmits one assembled datagram to the peer. Supplied by the
	// endpoint, which knows the peer address this connection routes to.
	Send func([]byte) error

	NewHandler HandlerFactory

	mu           sync.Mutex
	connectionID uint32
	flowWindow   uint32
	lastRxPktID  uint32
	haveRx       bool

	ackMu   sync.Mutex
	ackCond *sync.Cond
	ackCur  uint32
	ackPrev uint32
	ackSeen bool

	streamMu  sync.Mutex
	streamIn  map[uint16]chan wire.Frame
	mux       chan wire.Frame

	done chan struct{}

	// pacer throttles TX scheduling iterations to opts.PacingInterval,
	// replacing a bare busy-sleep with a token-bucket limiter.
	pacer *rate.Limiter

	metrics *Metrics
}

// NewEngine constructs an Engine for connectionID. send is the egress
// datagram sink; newHandler builds a stream handler for each newly
// observed stream_id.
func NewEngine(connectionID uint32, send func([]byte) error, newHandler HandlerFactory, opts ...Option) *Engine {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}

	e := &Engine{
		opts:         o,
		log:          logrus.WithField("connection_id", connectionID),
		Send:         send,
		NewHandler:   newHandler,
		connectionID: connectionID,
		flowWindow:   o.InitialFlowWindow,
		streamIn:     make(map[uint16]chan wire.Frame),
		mux:          make(chan wire.Frame, o.MuxSize),
		done:         make(chan struct{}),
		pacer:        rate.NewLimiter(rate.Every(o.PacingInterval), 1),
		metrics:      newMetrics(connectionID),
	}
	e.ackCond = sync.NewCond(&e.ackMu)
	return e
}

// Metrics returns the Engine's prometheus.Collector, registerable by the
// caller once per connection.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// streamCount returns the number of stream handlers currently registered,
// wire-driven and local alike.
func (e *Engine) streamCount() uint64 {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	return uint64(len(e.streamIn))
}

// Close tears down the connection: it stops the TX loop and releases
// blocked RX stream-dispatch goroutines.
func (e *Engine) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
		e.ackCond.Broadcast()
	}
}

// Deliver hands a received, CRC-validated packet to the RX task. It is
// called by the endpoint's demux loop once per inbound datagram addressed
// to this connection.
func (e *Engine) Deliver(p *wire.Packet) {
	e.mu.Lock()
	firstPacket := !e.haveRx
	gap := !firstPacket && p.PacketID > e.lastRxPktID+1
	// Only advance last_rx_packet_id on the very first packet or a
	// strictly in-order arrival; a gap or a duplicate/reordered older
	// packet leaves it where it was so the Ack below still asks the
	// sender to fill the hole.
	if firstPacket || p.PacketID == e.lastRxPktID+1 {
		e.lastRxPktID = p.PacketID
		e.haveRx = true
	}
	ackTarget := e.lastRxPktID
	e.mu.Unlock()

	if gap {
		e.log.Warnf("packet gap detected, last=%d got=%d", ackTarget, p.PacketID)
	}

	for _, f := range p.Frames {
		if f.StreamID() == 0 {
			e.handleControlFrame(f)
			continue
		}
		e.dispatchStreamFrame(f)
	}

	// Every delivered packet gets an Ack for the last in-order packet_id;
	// after a gap or a duplicate this repeats the previous Ack, which the
	// peer reads as a duplicate. Repeated identical Acks are not suppressed
	// here; the peer's TX task only reacts to a change in its Ack pair.
	e.enqueueControl(wire.NewAckFrame(ackTarget))
}

func (e *Engine) handleControlFrame(f wire.Frame) {
	switch v := f.(type) {
	case *wire.ExitFrame:
		e.log.Info("peer sent Exit, tearing down connection")
		e.Close()
	case *wire.ConnIdChangeFrame:
		e.mu.Lock()
		if e.connectionID != v.OldCID {
			e.log.Warnf("ConnIdChange old_cid mismatch: have=%d want=%d", e.connectionID, v.OldCID)
		}
		e.connectionID = v.NewCID
		e.mu.Unlock()
	case *wire.FlowControlFrame:
		e.mu.Lock()
		e.flowWindow = v.WindowSize
		e.mu.Unlock()
	case *wire.AckFrame:
		e.onAck(v.PacketID)
	}
}

// onAck implements the ACK-pair rendezvous: RX writes (prev<-cur, cur<-new)
// under lock and signals; TX decides forward/stall/rewind.
func (e *Engine) onAck(newID uint32) {
	e.ackMu.Lock()
	if e.ackSeen && newID < e.ackCur {
		e.ackMu.Unlock()
		e.log.Errorf("illegal ack regression: cur=%d new=%d", e.ackCur, newID)
		e.Close()
		return
	}
	e.ackPrev, e.ackCur = e.ackCur, newID
	e.ackSeen = true
	e.ackMu.Unlock()
	e.ackCond.Broadcast()
}

// OpenLocalStream pre-seeds a stream handler with firstFrame without
// going through the wire. The client side uses this to dispatch a
// Write-to-self command locally before requesting the matching Read from
// the server, so the handler is already waiting when the server's Data
// frames arrive over this same connection. Its Out traffic stays local
// rather than feeding the TX mux: a local write-to-self has nothing to say
// to the peer (the server already knows whether its Read succeeded from
// its own stream handler's Error frame). Its Ack hints still go to
// onAckHint, which queues connection-level Acks for the peer as for any
// other stream. The returned channel receives the
// handler's outcome — nil on a clean EOF, or the message of any Error
// frame it emitted locally — exactly once, when the handler terminates.
func (e *Engine) OpenLocalStream(streamID uint16, firstFrame wire.Frame) <-chan error {
	sink := make(chan wire.Frame, e.opts.StreamSinkSize)
	e.streamMu.Lock()
	e.streamIn[streamID] = sink
	e.streamMu.Unlock()

	out := make(chan wire.Frame, e.opts.StreamSinkSize)
	acks := make(chan streamhandler.AckHint, 4)
	runner := e.NewHandler(streamID, sink, out, acks)

	done := make(chan error, 1)

	go func() {
		for a := range acks {
			e.onAckHint(a)
		}
	}()

	go func() {
		defer func() {
			e.streamMu.Lock()
			delete(e.streamIn, streamID)
			e.streamMu.Unlock()
		}()

		runner.Run()
		close(acks)

		var result error
	drain:
		for {
			select {
			case f := <-out:
				if ef, ok := f.(*wire.ErrorFrame); ok {
					result = errors.New(ef.Message())
				}
			default:
				break drain
			}
		}
		done <- result
		close(done)
	}()

	sink <- firstFrame
	return done
}

func (e *Engine) dispatchStreamFrame(f wire.Frame) {
	sid := f.StreamID()
	e.streamMu.Lock()
	sink, ok := e.streamIn[sid]
	if !ok {
		sink = make(chan wire.Frame, e.opts.StreamSinkSize)
		e.streamIn[sid] = sink
		e.streamMu.Unlock()
		e.spawnHandler(sid, sink, e.mux)
	} else {
		e.streamMu.Unlock()
	}

	select {
	case sink <- f:
	case <-time.After(50 * time.Millisecond):
		e.log.Warnf("stream %d sink full, dropping frame (relying on retransmit)", sid)
	}
}

func (e *Engine) spawnHandler(streamID uint16, in chan wire.Frame, out chan<- wire.Frame) {
	acks := make(chan streamhandler.AckHint, 4)
	runner := e.NewHandler(streamID, in, out, acks)

	go func() {
		for a := range acks {
			e.onAckHint(a)
		}
	}()

	go func() {
		defer func() {
			close(acks)
			e.streamMu.Lock()
			delete(e.streamIn, streamID)
			e.streamMu.Unlock()
		}()
		runner.Run()
	}()
}

// onAckHint re-emits our Ack for the last in-order packet we received.
// Both hints resolve to the same action from the RX side: "duplicate Ack"
// is a property the peer's TX task observes (the same packet_id acked
// twice in a row), not a distinct frame this side constructs.
func (e *Engine) onAckHint(h streamhandler.AckHint) {
	e.mu.Lock()
	target := e.lastRxPktID
	e.mu.Unlock()
	e.enqueueControl(wire.NewAckFrame(target))
}

// enqueueControl places a control frame on the mux so the TX task picks it
// up like any other outbound frame.
func (e *Engine) enqueueControl(f wire.Frame) {
	select {
	case e.mux <- f:
	case <-e.done:
	}
}

// SubmitFrame lets a caller outside the stream-handler tree (e.g. the
// endpoint, to send an initial command frame) enqueue a frame for TX.
func (e *Engine) SubmitFrame(f wire.Frame) {
	e.enqueueControl(f)
}
