// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rft/wire"
)

func buildAckPacket(t *testing.T) *wire.Packet {
	t.Helper()
	p := wire.NewPacket(420, 42)
	require.NoError(t, p.AddFrame(wire.NewAckFrame(1)))
	return p
}

func TestPacketRoundTrip(t *testing.T) {
	p := buildAckPacket(t)
	buf := p.Assemble()

	got, err := wire.ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, p.ConnectionID, got.ConnectionID)
	assert.Equal(t, p.PacketID, got.PacketID)
	require.Len(t, got.Frames, 1)
	ack, ok := got.Frames[0].(*wire.AckFrame)
	require.True(t, ok)
	assert.Equal(t, uint32(1), ack.PacketID)
}

func TestPacketSizeMatchesAssembledLength(t *testing.T) {
	p := wire.NewPacket(69, 12)
	require.NoError(t, p.AddFrame(wire.NewDataFrame(1, 2, []byte("Did you ever hear the Tragedy of Darth Plagueis the Wise?"))))
	buf := p.Assemble()
	assert.Equal(t, p.Size(), len(buf))
}

func TestChecksumMismatchOnBitFlip(t *testing.T) {
	p := buildAckPacket(t)
	buf := p.Assemble()
	buf[len(buf)-1] ^= 0xFF

	_, err := wire.ParsePacket(buf)
	assert.ErrorIs(t, err, wire.ErrChecksumMismatch)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, err := wire.ParsePacket([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewExitFrame()))
	buf := p.Assemble()
	buf[headerLenForTest] = 0xFF // clobber the Exit frame's type_id

	// Re-stamp the CRC-24 so the packet fails on the opcode, not the checksum.
	buf[9], buf[10], buf[11] = 0, 0, 0
	crc := crc32.ChecksumIEEE(buf) & 0x00FFFFFF
	buf[9], buf[10], buf[11] = byte(crc), byte(crc>>8), byte(crc>>16)

	_, err := wire.ParsePacket(buf)
	assert.ErrorIs(t, err, wire.ErrMalformedFrame)
}

const headerLenForTest = 12

func TestDataFrameZeroPayloadIsEOF(t *testing.T) {
	f := wire.NewDataFrame(5, 334, nil)
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(f))
	buf := p.Assemble()

	got, err := wire.ParsePacket(buf)
	require.NoError(t, err)
	data := got.Frames[0].(*wire.DataFrame)
	assert.Equal(t, uint64(334), data.Offset)
	assert.Empty(t, data.Payload)
}

func TestReadFrameRoundTrip(t *testing.T) {
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewReadFrame(7, "testfile.txt", 0, 0)))
	buf := p.Assemble()

	got, err := wire.ParsePacket(buf)
	require.NoError(t, err)
	rf := got.Frames[0].(*wire.ReadFrame)
	assert.Equal(t, "testfile.txt", rf.Path)
	assert.Equal(t, uint64(0), rf.Offset)
	assert.Equal(t, uint64(0), rf.Length)
}

func TestErrorFrameMessage(t *testing.T) {
	p := wire.NewPacket(1, 1)
	require.NoError(t, p.AddFrame(wire.NewErrorFrame(3, "No such file or directory (os error 2)")))
	buf := p.Assemble()

	got, err := wire.ParsePacket(buf)
	require.NoError(t, err)
	ef := got.Frames[0].(*wire.ErrorFrame)
	assert.Equal(t, "No such file or directory (os error 2)", ef.Message())
}

func TestControlFramesHaveStreamZero(t *testing.T) {
	assert.Equal(t, uint16(0), wire.NewAckFrame(1).StreamID())
	assert.Equal(t, uint16(0), wire.NewExitFrame().StreamID())
	assert.Equal(t, uint16(0), wire.NewConnIdChangeFrame(1, 2).StreamID())
	assert.Equal(t, uint16(0), wire.NewFlowControlFrame(8192).StreamID())
}
