// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rft/streamhandler"
	"code.hybscloud.com/rft/wire"
)

type noopRunner struct{ in <-chan wire.Frame }

func (r *noopRunner) Run() {
	for range r.in {
	}
}

// scriptedRunner emits a single frame (or nothing) to out, then returns;
// it stands in for a streamhandler.Handler whose outcome is known ahead
// of time, to exercise OpenLocalStream's completion signal.
type scriptedRunner struct {
	out  chan<- wire.Frame
	emit wire.Frame
}

func (r *scriptedRunner) Run() {
	if r.emit != nil {
		r.out <- r.emit
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	sent := make(chan []byte, 64)
	e := NewEngine(1, func(b []byte) error { sent <- b; return nil },
		func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) StreamRunner {
			return &noopRunner{in: in}
		})
	t.Cleanup(e.Close)
	return e
}

func TestDeliverFirstPacketAdoptsID(t *testing.T) {
	e := newTestEngine(t)
	p := wire.NewPacket(1, 5)
	e.Deliver(p)

	e.mu.Lock()
	got := e.lastRxPktID
	e.mu.Unlock()
	assert.Equal(t, uint32(5), got)
}

func TestDeliverGapDoesNotAdvanceLastRx(t *testing.T) {
	e := newTestEngine(t)
	e.Deliver(wire.NewPacket(1, 1))
	e.Deliver(wire.NewPacket(1, 3)) // gap: expected 2

	e.mu.Lock()
	got := e.lastRxPktID
	e.mu.Unlock()
	assert.Equal(t, uint32(1), got)
}

func TestDeliverInOrderAdvances(t *testing.T) {
	e := newTestEngine(t)
	e.Deliver(wire.NewPacket(1, 1))
	e.Deliver(wire.NewPacket(1, 2))

	e.mu.Lock()
	got := e.lastRxPktID
	e.mu.Unlock()
	assert.Equal(t, uint32(2), got)
}

func TestConnIdChangeUpdatesID(t *testing.T) {
	e := newTestEngine(t)
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewConnIdChangeFrame(1, 99)))
	e.Deliver(p)

	e.mu.Lock()
	got := e.connectionID
	e.mu.Unlock()
	assert.Equal(t, uint32(99), got)
}

func TestFlowControlUpdatesWindow(t *testing.T) {
	e := newTestEngine(t)
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewFlowControlFrame(4096)))
	e.Deliver(p)

	assert.Equal(t, uint64(4096), e.currentFlowWindow())
}

func TestAckPairDistinguishesForwardFromDuplicate(t *testing.T) {
	e := newTestEngine(t)
	e.onAck(5)
	e.ackMu.Lock()
	cur, prev := e.ackCur, e.ackPrev
	e.ackMu.Unlock()
	assert.Equal(t, uint32(5), cur)
	assert.Equal(t, uint32(0), prev)

	e.onAck(5) // duplicate
	e.ackMu.Lock()
	cur, prev = e.ackCur, e.ackPrev
	e.ackMu.Unlock()
	assert.Equal(t, uint32(5), cur)
	assert.Equal(t, uint32(5), prev)
}

func TestOpenLocalStreamSignalsSuccess(t *testing.T) {
	e := NewEngine(1, func(b []byte) error { return nil },
		func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) StreamRunner {
			return &scriptedRunner{out: out}
		})
	t.Cleanup(e.Close)

	done := e.OpenLocalStream(1, wire.NewWriteFrame(1, "f", 0, 0))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("OpenLocalStream did not signal completion")
	}
}

func TestOpenLocalStreamSignalsHandlerError(t *testing.T) {
	e := NewEngine(1, func(b []byte) error { return nil },
		func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) StreamRunner {
			return &scriptedRunner{out: out, emit: wire.NewErrorFrame(streamID, "boom")}
		})
	t.Cleanup(e.Close)

	done := e.OpenLocalStream(1, wire.NewWriteFrame(1, "f", 0, 0))
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, "boom", err.Error())
	case <-time.After(time.Second):
		t.Fatal("OpenLocalStream did not signal completion")
	}
}

func TestExitFrameClosesEngine(t *testing.T) {
	e := newTestEngine(t)
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewExitFrame()))
	e.Deliver(p)

	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("engine did not close on Exit")
	}
}
