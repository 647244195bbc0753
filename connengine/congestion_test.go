// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlowStartGrowsByMSSPerAckedPacket(t *testing.T) {
	r := newReno()
	before := r.window()
	r.onForwardAck(2, 1)
	assert.Equal(t, before+mss, r.window())
}

func TestLossSignalHalvesCwndAndSsthresh(t *testing.T) {
	r := newReno()
	r.cwnd = 8192
	r.onLossSignal()
	assert.Equal(t, uint64(4096), r.window())
	assert.Equal(t, float64(4096), r.ssthresh)
}

func TestTransitionsToCongestionAvoidance(t *testing.T) {
	r := newReno()
	r.ssthresh = r.cwnd
	assert.True(t, r.inCongestionAvoidance())
}
