// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import "time"

// Options configures an Engine's tunables. Generalizes the functional-
// options pattern used throughout this codebase to the connection
// engine's timing and sizing knobs.
type Options struct {
	// RingSize is R, the sent-packet ring buffer's capacity in packets.
	RingSize int

	// MaxPacketSize is the size budget (bytes, header included) a TX
	// iteration will coalesce frames up to before finalizing a packet.
	MaxPacketSize int

	// CoalesceWait is the secondary per-frame wait (§4.3 step 3) once a
	// packet has at least one frame.
	CoalesceWait time.Duration

	// PacingInterval is the sleep between TX scheduling iterations used
	// to avoid busy-looping while waiting for window headroom.
	PacingInterval time.Duration

	// InitialFlowWindow is the receive-buffer capacity this side
	// advertises on connection open.
	InitialFlowWindow uint32

	// RTOTimeout is the retransmission timeout that, on expiry with no
	// new Ack, re-enters slow start.
	RTOTimeout time.Duration

	// StreamSinkSize is the channel buffer size for a per-stream input
	// sink.
	StreamSinkSize int

	// MuxSize is the channel buffer size for the cross-stream frame mux.
	MuxSize int
}

// DefaultInitialFlowWindow is the receive window an endpoint advertises
// to a freshly accepted peer before it has observed any application
// behavior to size it by.
const DefaultInitialFlowWindow = 8192

var defaultOptions = Options{
	RingSize:          defaultRingSize,
	MaxPacketSize:     wireMaxFrameBudget,
	CoalesceWait:      1 * time.Millisecond,
	PacingInterval:    100 * time.Microsecond,
	InitialFlowWindow: DefaultInitialFlowWindow,
	RTOTimeout:        2 * time.Second,
	StreamSinkSize:    8,
	MuxSize:           32,
}

// Option mutates an Options value; apply via NewEngine.
type Option func(*Options)

func WithRingSize(n int) Option { return func(o *Options) { o.RingSize = n } }

func WithMaxPacketSize(n int) Option { return func(o *Options) { o.MaxPacketSize = n } }

func WithCoalesceWait(d time.Duration) Option { return func(o *Options) { o.CoalesceWait = d } }

func WithPacingInterval(d time.Duration) Option { return func(o *Options) { o.PacingInterval = d } }

func WithInitialFlowWindow(n uint32) Option { return func(o *Options) { o.InitialFlowWindow = n } }

func WithRTOTimeout(d time.Duration) Option { return func(o *Options) { o.RTOTimeout = d } }
