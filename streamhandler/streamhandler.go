// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package streamhandler implements the per-stream state machine: one
// goroutine per (connection, stream_id), driven by an inbound frame
// channel and an outbound frame sink, executing exactly one of
// Read/Write/Checksum (Stat and List reply "Not implemented") before
// terminating.
package streamhandler

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/wire"
)

const (
	// readChunkSize is the size of each Data frame's payload emitted by a
	// Read handler; chosen to fit comfortably within the 1024-byte MSS.
	readChunkSize = 256

	// ackInterval is the cumulative-ACK coalescing interval K for a Write
	// handler; the reference value from the design notes.
	ackInterval = 2

	// writeTimeout is the single per-frame inactivity ceiling on a Write
	// handler.
	writeTimeout = 5 * time.Second
)

// AckHint is a request from a stream handler to the connection engine's RX
// task, which owns the packet-level Ack state (§4.3) a stream has no
// visibility into. It carries no wire representation of its own; the
// engine turns it into an Ack frame for the packet currently being
// acknowledged.
type AckHint uint8

const (
	// AckProgress asks the engine to emit (or coalesce into) its next
	// regular cumulative Ack — used when the Write handler's K-interval
	// counter rolls over.
	AckProgress AckHint = iota
	// AckDuplicate asks the engine to re-emit its last Ack verbatim,
	// signalling the sender to retransmit — used on a Write handler's
	// out-of-order Data frame.
	AckDuplicate
)

// Handler runs the state machine for one stream to completion.
type Handler struct {
	StreamID uint16
	Store    fsstore.Store
	In       <-chan wire.Frame
	Out      chan<- wire.Frame

	// Acks, if non-nil, receives AckHints raised while processing a Write
	// command. It may be nil for Read/Checksum handlers, which never hint.
	Acks chan<- AckHint
}

// New returns a Handler for streamID backed by store, consuming in and
// producing to out. acks may be nil if the caller does not need Ack hints
// (e.g. a client-side Read-only handler).
func New(streamID uint16, store fsstore.Store, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- AckHint) *Handler {
	return &Handler{StreamID: streamID, Store: store, In: in, Out: out, Acks: acks}
}

// Run blocks until the stream's single command completes (successfully or
// with an Error frame) or the input channel closes.
func (h *Handler) Run() {
	first, ok := <-h.In
	if !ok {
		return
	}

	switch cmd := first.(type) {
	case *wire.ReadFrame:
		h.handleRead(cmd)
	case *wire.WriteFrame:
		h.handleWrite(cmd)
	case *wire.ChecksumFrame:
		h.handleChecksum(cmd)
	case *wire.StatFrame:
		h.emitError("Not implemented")
	case *wire.ListFrame:
		h.emitError("Not implemented")
	default:
		h.emitError("Illegal initial frame")
	}
}

func (h *Handler) emit(f wire.Frame) {
	h.Out <- f
}

func (h *Handler) emitError(msg string) {
	h.emit(wire.NewErrorFrame(h.StreamID, msg))
}

func (h *Handler) hint(a AckHint) {
	if h.Acks != nil {
		h.Acks <- a
	}
}

// handleRead implements §4.2.1: emits Data frames covering
// [offset, offset+effective_length), terminated by a zero-payload EOF
// Data frame.
func (h *Handler) handleRead(cmd *wire.ReadFrame) {
	size, err := h.Store.Size(cmd.Path)
	if err != nil {
		h.emitError(osErrorMessage(err))
		return
	}

	readTarget := uint64(size)
	if cmd.Length > 0 {
		readTarget = cmd.Offset + cmd.Length
		if readTarget > uint64(size) {
			h.emitError("Read range exceeds file size")
			return
		}
	}

	current := cmd.Offset
	buf := make([]byte, readChunkSize)
	for {
		if current >= readTarget {
			h.emit(wire.NewDataFrame(h.StreamID, current, nil))
			return
		}
		want := uint64(readChunkSize)
		if remain := readTarget - current; remain < want {
			want = remain
		}
		n, err := h.Store.ReadAt(cmd.Path, buf[:want], int64(current))
		if n > 0 {
			h.emit(wire.NewDataFrame(h.StreamID, current, append([]byte(nil), buf[:n]...)))
			current += uint64(n)
		}
		if err != nil {
			if n == 0 {
				h.emitError(osErrorMessage(err))
				return
			}
		}
	}
}

// handleWrite implements §4.2.2: receives a Data stream from the peer and
// persists it via Store, enforcing the append-only offset invariant.
func (h *Handler) handleWrite(cmd *wire.WriteFrame) {
	size, err := h.Store.Size(cmd.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.emitError(osErrorMessage(err))
			return
		}
		size = 0 // file does not exist yet; Write at offset 0 creates it.
	}
	if uint64(size) != cmd.Offset {
		h.emitError("Write offset does not match current file size")
		return
	}

	h.hint(AckProgress)

	expected := cmd.Offset
	ackCounter := 0
	for {
		select {
		case f, ok := <-h.In:
			if !ok {
				return
			}
			data, isData := f.(*wire.DataFrame)
			if !isData {
				h.emitError("Illegal Frame Received")
				return
			}
			if len(data.Payload) == 0 {
				h.hint(AckProgress)
				return
			}
			if data.Offset != expected {
				h.hint(AckDuplicate)
				continue
			}
			if _, err := h.Store.WriteAt(cmd.Path, data.Payload, int64(data.Offset)); err != nil {
				h.emitError(osErrorMessage(err))
				return
			}
			expected += uint64(len(data.Payload))
			ackCounter++
			if ackCounter >= ackInterval {
				h.hint(AckProgress)
				ackCounter = 0
			}
		case <-time.After(writeTimeout):
			h.emitError("Timeout")
			return
		}
	}
}

// handleChecksum implements §4.2.3: emits the SHA-256 digest of the file
// as an Answer payload.
func (h *Handler) handleChecksum(cmd *wire.ChecksumFrame) {
	digest, err := h.Store.Hash(cmd.Path)
	if err != nil {
		h.emitError(osErrorMessage(err))
		return
	}
	h.emit(wire.NewAnswerFrame(h.StreamID, digest))
}

func init() {
	logrus.SetLevel(logrus.InfoLevel)
}
