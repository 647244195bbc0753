// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import (
	"context"
	"time"

	"code.hybscloud.com/rft/wire"
)

// txState is the TX task's private bookkeeping; owned exclusively by
// Run's goroutine except where noted.
type txState struct {
	nextTxPacketID    uint32
	highestSent       uint32
	lastAckedPacketID uint32
	totalSentBytes    uint64
	lastAckedBytes    uint64
	ring              *sentPacketRing
	cc                *reno

	// pending holds a frame pulled from the mux during coalescing that
	// did not fit the current packet's size budget; it is prepended to
	// the next packet instead of being requeued through the channel.
	pending wire.Frame
}

// Run drives the TX pacer until Close is called. It combines frame
// multiplexing, congestion/flow-controlled pacing, and ring-buffer
// retransmission, per §4.3.
func (e *Engine) Run() {
	st := &txState{
		nextTxPacketID: 1,
		highestSent:    0,
		ring:           newSentPacketRing(e.opts.RingSize),
		cc:             newReno(),
	}

	for {
		select {
		case <-e.done:
			return
		default:
		}

		e.metrics.set(st.cc.window(), uint64(st.cc.ssthresh), e.currentFlowWindow(), st.totalSentBytes-st.lastAckedBytes, e.streamCount())

		if e.waitForWindowOrSignal(st) {
			return // closed while waiting
		}

		if st.nextTxPacketID > st.highestSent {
			if !e.buildAndSendNewPacket(st) {
				return
			}
		} else {
			e.resend(st, st.nextTxPacketID)
		}

		_ = e.pacer.Wait(context.Background())
	}
}

func (e *Engine) currentFlowWindow() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(e.flowWindow)
}

// waitForWindowOrSignal blocks while inflight bytes meet or exceed
// min(flowWindow, cwnd), per §4.3 step 2. It returns true if the engine
// was closed while waiting.
func (e *Engine) waitForWindowOrSignal(st *txState) bool {
	e.ackMu.Lock()
	defer e.ackMu.Unlock()

	for {
		inflight := st.totalSentBytes - st.lastAckedBytes
		budget := st.cc.window()
		if fw := e.currentFlowWindow(); fw < budget {
			budget = fw
		}
		if inflight < budget {
			return false
		}

		prevCur, prevPrev, prevSeen := e.ackCur, e.ackPrev, e.ackSeen
		waitDone := make(chan struct{})
		timer := time.AfterFunc(e.opts.RTOTimeout, func() { close(waitDone) })

		// Release the ack lock while waiting on the condition variable;
		// sync.Cond.Wait re-acquires it on wakeup.
		woke := make(chan struct{})
		go func() {
			e.ackCond.Wait()
			close(woke)
		}()

		select {
		case <-woke:
			timer.Stop()
		case <-waitDone:
			// RTO fired with no new Ack: restart slow start.
			st.cc.ssthresh = st.cc.cwnd / 2
			st.cc.cwnd = initialCwnd
			e.ackCond.Broadcast() // unblock the waiter goroutine above
			<-woke
		}

		select {
		case <-e.done:
			return true
		default:
		}

		if e.ackSeen && (!prevSeen || e.ackCur != prevCur || e.ackPrev != prevPrev) {
			e.applyAckLocked(st)
		}

		inflight = st.totalSentBytes - st.lastAckedBytes
		budget = st.cc.window()
		if fw := e.currentFlowWindow(); fw < budget {
			budget = fw
		}
		if inflight < budget {
			return false
		}
	}
}

// applyAckLocked reacts to the latest (ackPrev, ackCur) pair; caller holds
// e.ackMu.
func (e *Engine) applyAckLocked(st *txState) {
	cur, prev := e.ackCur, e.ackPrev
	switch {
	case cur > prev:
		st.cc.onForwardAck(cur, prev)
		if sz, ok := e.ackedBytesThrough(st, cur); ok {
			st.lastAckedBytes = sz
		}
		st.lastAckedPacketID = cur
	case cur == prev:
		// duplicate Ack: fast retransmit.
		st.cc.onLossSignal()
		st.nextTxPacketID = st.lastAckedPacketID + 1
		st.totalSentBytes = st.lastAckedBytes
	}
}

// ackedBytesThrough sums the ring-buffer sizes of packets up to and
// including packetID that have not yet been counted as acked. Since the
// ring only remembers sizes modulo R, this is an approximation scoped to
// the packets still resident in the ring; bytes already evicted from the
// ring were necessarily acked earlier and are already reflected in
// lastAckedBytes.
func (e *Engine) ackedBytesThrough(st *txState, packetID uint32) (uint64, bool) {
	if packetID <= st.lastAckedPacketID {
		return st.lastAckedBytes, true
	}
	total := st.lastAckedBytes
	for id := st.lastAckedPacketID + 1; id <= packetID; id++ {
		total += uint64(st.ring.sizeOf(id))
	}
	return total, true
}

// buildAndSendNewPacket assembles one fresh packet: waits for the first
// frame unboundedly, then coalesces further frames with a short secondary
// wait until the size budget is reached or the wait elapses.
func (e *Engine) buildAndSendNewPacket(st *txState) bool {
	var first wire.Frame
	if st.pending != nil {
		first, st.pending = st.pending, nil
	} else {
		select {
		case first = <-e.mux:
		case <-e.done:
			return false
		}
	}

	e.mu.Lock()
	cid := e.connectionID
	e.mu.Unlock()

	p := wire.NewPacket(cid, st.nextTxPacketID)
	_ = p.AddFrame(first)
	size := headerLenApprox + first.Size()

coalesce:
	for {
		select {
		case f := <-e.mux:
			hint := f.Size()
			if size+hint > e.opts.MaxPacketSize {
				st.pending = f
				break coalesce
			}
			_ = p.AddFrame(f)
			size += hint
		case <-time.After(e.opts.CoalesceWait):
			break coalesce
		case <-e.done:
			return false
		}
	}

	buf := p.Assemble()
	st.ring.store(st.nextTxPacketID, buf)

	if err := e.Send(buf); err != nil {
		e.log.Errorf("send failed: %v", err)
	}
	st.totalSentBytes += uint64(len(buf))
	st.highestSent = st.nextTxPacketID
	st.nextTxPacketID++
	return true
}

// resend retransmits packetID from the ring buffer and moves nextTxPacketID
// on to the following packet, never beyond highestSent+1; it allocates no
// new packet_id, so rewind is idempotent.
func (e *Engine) resend(st *txState, packetID uint32) {
	buf, ok := st.ring.get(packetID)
	if !ok {
		// Nothing to resend (ring wrapped past it); skip ahead.
		st.nextTxPacketID = st.highestSent + 1
		return
	}
	if err := e.Send(buf); err != nil {
		e.log.Errorf("resend failed: %v", err)
		return
	}
	e.metrics.incRetransmits()
	if packetID == st.highestSent {
		st.nextTxPacketID = st.highestSent + 1
	} else {
		st.nextTxPacketID++
	}
}

const headerLenApprox = 12
