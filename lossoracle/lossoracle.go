// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lossoracle implements the two-state Markov chain drop decision
// consulted by an Endpoint at datagram ingress and egress. It is an
// external collaborator to the connection engine: the engine never knows
// whether loss simulation is active.
package lossoracle

import "math/rand"

// state is the oracle's Markov state: whether the previous datagram it was
// asked about was dropped.
type state uint8

const (
	notLost state = iota
	lost
)

// Oracle samples a two-state Markov chain: P(drop | previous not dropped) =
// P, P(drop | previous dropped) = Q. A fresh Oracle starts in notLost.
type Oracle struct {
	rng   *rand.Rand
	p     float64
	q     float64
	state state
}

// New returns an Oracle with drop probabilities p (after a kept datagram)
// and q (after a dropped datagram).
func New(p, q float64) *Oracle {
	return &Oracle{rng: rand.New(rand.NewSource(rand.Int63())), p: p, q: q, state: notLost}
}

// NewSeeded is identical to New but takes an explicit seed, for
// reproducible test runs.
func NewSeeded(p, q float64, seed int64) *Oracle {
	return &Oracle{rng: rand.New(rand.NewSource(seed)), p: p, q: q, state: notLost}
}

// Next samples the chain once, advances its state, and reports whether
// this datagram should be dropped.
func (o *Oracle) Next() bool {
	prob := o.p
	if o.state == lost {
		prob = o.q
	}
	drop := o.rng.Float64() < prob
	if drop {
		o.state = lost
	} else {
		o.state = notLost
	}
	return drop
}
