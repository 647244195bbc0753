// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import "math"

// mss is the maximum segment size the Reno estimator accounts in: a flat
// 1024 bytes, with no deduction for the packet header.
const mss = 1024

// initialCwnd is the sender's starting congestion window: 4 * MSS.
const initialCwnd = 4 * mss

// reno implements the TCP-Reno-flavoured congestion controller described
// in §4.3: slow start below ssthresh, additive-increase congestion
// avoidance at or above it, multiplicative decrease on duplicate Ack. The
// RTO timeout path in waitForWindowOrSignal halves ssthresh and resets
// cwnd to initialCwnd directly rather than calling onLossSignal.
type reno struct {
	cwnd     float64
	ssthresh float64
}

func newReno() *reno {
	return &reno{cwnd: initialCwnd, ssthresh: math.MaxUint32}
}

// onForwardAck updates cwnd for newID-prevID newly-acknowledged packets.
func (r *reno) onForwardAck(newID, prevID uint32) {
	n := float64(newID - prevID)
	if r.cwnd < r.ssthresh {
		r.cwnd += mss * n
	} else {
		r.cwnd += (mss * n) / r.cwnd
	}
}

// onLossSignal implements the multiplicative-decrease half of Reno, used
// by duplicate-Ack fast retransmit.
func (r *reno) onLossSignal() {
	r.ssthresh = r.cwnd / 2
	r.cwnd = r.cwnd / 2
}

// window returns the current congestion window in bytes.
func (r *reno) window() uint64 {
	return uint64(r.cwnd)
}

func (r *reno) inCongestionAvoidance() bool {
	return r.cwnd >= r.ssthresh
}
