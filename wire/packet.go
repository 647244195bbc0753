// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements byte-exact encoding and decoding of rft packets
// and frames: header layout, CRC-24 integrity, and opcode dispatch over a
// single contiguous buffer. Parsing decodes into owned values rather than
// zero-copy reference-counted slices; round-trip and checksum invariants
// hold either way.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// Version is the wire format version this package emits. ParsePacket
	// does not check the version byte of a received packet.
	Version uint8 = 1

	headerLen = 12

	// MaxPacketSize is the socket contract's 2048-byte datagram payload
	// ceiling. Assemble and ParsePacket do not check it.
	MaxPacketSize = 2048
)

// Packet is a connection-scoped unit of datagram payload: a fixed header
// followed by a concatenation of frames.
type Packet struct {
	ConnectionID uint32
	PacketID     uint32
	Frames       []Frame
}

// NewPacket creates an empty packet with version 1 and no frames.
func NewPacket(connectionID, packetID uint32) *Packet {
	return &Packet{ConnectionID: connectionID, PacketID: packetID}
}

// AddFrame appends a frame, failing with ErrTooLong if any length-prefixed
// field of the frame would overflow its wire-format width.
func (p *Packet) AddFrame(f Frame) error {
	if err := f.validate(); err != nil {
		return err
	}
	p.Frames = append(p.Frames, f)
	return nil
}

// Size returns the assembled wire size of the packet: header plus the sum
// of each frame's encoded length.
func (p *Packet) Size() int {
	n := headerLen
	for _, f := range p.Frames {
		n += f.Size()
	}
	return n
}

// Assemble returns the wire form of the packet. The checksum field is
// computed last, over the full buffer with the checksum bytes zeroed.
func (p *Packet) Assemble() []byte {
	buf := make([]byte, p.Size())
	buf[0] = Version
	binary.LittleEndian.PutUint32(buf[1:5], p.ConnectionID)
	binary.LittleEndian.PutUint32(buf[5:9], p.PacketID)
	// buf[9:12] (checksum) left zero until the CRC pass below.

	off := headerLen
	for _, f := range p.Frames {
		off += f.encode(buf[off:])
	}

	crc := checksum24(buf)
	buf[9] = byte(crc)
	buf[10] = byte(crc >> 8)
	buf[11] = byte(crc >> 16)
	return buf
}

// ParsePacket validates the CRC-24 trailer, then iteratively decodes
// frames until the buffer is exhausted. It fails with ErrChecksumMismatch
// on a bad CRC, or ErrMalformedFrame on an unknown opcode or truncated
// frame.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < headerLen {
		return nil, fmt.Errorf("wire: short packet (%d bytes): %w", len(buf), ErrMalformedFrame)
	}

	want := uint32(buf[9]) | uint32(buf[10])<<8 | uint32(buf[11])<<16
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	scratch[9], scratch[10], scratch[11] = 0, 0, 0
	if got := checksum24(scratch); got != want {
		return nil, ErrChecksumMismatch
	}

	p := &Packet{
		ConnectionID: binary.LittleEndian.Uint32(buf[1:5]),
		PacketID:     binary.LittleEndian.Uint32(buf[5:9]),
	}

	rest := buf[headerLen:]
	for len(rest) > 0 {
		f, n, err := ParseFrame(rest)
		if err != nil {
			return nil, err
		}
		p.Frames = append(p.Frames, f)
		rest = rest[n:]
	}
	return p, nil
}
