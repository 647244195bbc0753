// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// TypeID discriminates a Frame's on-wire opcode.
type TypeID uint8

const (
	TypeAck          TypeID = 0
	TypeExit         TypeID = 1
	TypeConnIdChange TypeID = 2
	TypeFlowControl  TypeID = 3
	TypeAnswer       TypeID = 4
	TypeError        TypeID = 5
	TypeData         TypeID = 6
	TypeRead         TypeID = 7
	TypeWrite        TypeID = 8
	TypeChecksum     TypeID = 9
	TypeStat         TypeID = 10
	TypeList         TypeID = 11
)

const maxPathLen = 1<<16 - 1

// Frame is the common interface satisfied by every opcode's concrete type.
// StreamID returns 0 for the four control variants, matching the wire
// format's implicit stream-0 scoping for Ack/Exit/ConnIdChange/FlowControl.
type Frame interface {
	Type() TypeID
	StreamID() uint16
	Size() int
	encode(buf []byte) int
	validate() error
}

// ParseFrame decodes a single frame from the head of buf, returning the
// frame and the number of bytes consumed. It fails with ErrMalformedFrame
// on an unknown type_id, a truncated header, or a payload length exceeding
// the remaining bytes.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) < 1 {
		return nil, 0, ErrMalformedFrame
	}
	switch TypeID(buf[0]) {
	case TypeAck:
		return parseAck(buf)
	case TypeExit:
		return parseExit(buf)
	case TypeConnIdChange:
		return parseConnIdChange(buf)
	case TypeFlowControl:
		return parseFlowControl(buf)
	case TypeAnswer:
		return parsePayloadFrame(buf, TypeAnswer)
	case TypeError:
		return parsePayloadFrame(buf, TypeError)
	case TypeData:
		return parseData(buf)
	case TypeRead:
		return parseRead(buf)
	case TypeWrite:
		return parseWrite(buf)
	case TypeChecksum:
		return parsePathFrame(buf, TypeChecksum)
	case TypeStat:
		return parsePathFrame(buf, TypeStat)
	case TypeList:
		return parsePathFrame(buf, TypeList)
	default:
		return nil, 0, ErrMalformedFrame
	}
}

// --- control frames (stream_id implicitly 0) ---

// AckFrame acknowledges cumulative receipt up to PacketID.
type AckFrame struct {
	PacketID uint32
}

func NewAckFrame(packetID uint32) *AckFrame { return &AckFrame{PacketID: packetID} }

func (f *AckFrame) Type() TypeID      { return TypeAck }
func (f *AckFrame) StreamID() uint16  { return 0 }
func (f *AckFrame) Size() int   { return 5 }
func (f *AckFrame) encode(b []byte) int {
	b[0] = byte(TypeAck)
	binary.LittleEndian.PutUint32(b[1:5], f.PacketID)
	return 5
}

func (f *AckFrame) validate() error { return nil }

func parseAck(buf []byte) (Frame, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrMalformedFrame
	}
	return &AckFrame{PacketID: binary.LittleEndian.Uint32(buf[1:5])}, 5, nil
}

// ExitFrame signals that the sender is closing the connection.
type ExitFrame struct{}

func NewExitFrame() *ExitFrame { return &ExitFrame{} }

func (f *ExitFrame) Type() TypeID     { return TypeExit }
func (f *ExitFrame) StreamID() uint16 { return 0 }
func (f *ExitFrame) Size() int  { return 1 }
func (f *ExitFrame) encode(b []byte) int {
	b[0] = byte(TypeExit)
	return 1
}

func (f *ExitFrame) validate() error { return nil }

func parseExit(buf []byte) (Frame, int, error) {
	if len(buf) < 1 {
		return nil, 0, ErrMalformedFrame
	}
	return &ExitFrame{}, 1, nil
}

// ConnIdChangeFrame rotates the connection id from OldCID to NewCID.
type ConnIdChangeFrame struct {
	OldCID uint32
	NewCID uint32
}

func NewConnIdChangeFrame(oldCID, newCID uint32) *ConnIdChangeFrame {
	return &ConnIdChangeFrame{OldCID: oldCID, NewCID: newCID}
}

func (f *ConnIdChangeFrame) Type() TypeID     { return TypeConnIdChange }
func (f *ConnIdChangeFrame) StreamID() uint16 { return 0 }
func (f *ConnIdChangeFrame) Size() int  { return 9 }
func (f *ConnIdChangeFrame) encode(b []byte) int {
	b[0] = byte(TypeConnIdChange)
	binary.LittleEndian.PutUint32(b[1:5], f.OldCID)
	binary.LittleEndian.PutUint32(b[5:9], f.NewCID)
	return 9
}

func (f *ConnIdChangeFrame) validate() error { return nil }

func parseConnIdChange(buf []byte) (Frame, int, error) {
	if len(buf) < 9 {
		return nil, 0, ErrMalformedFrame
	}
	return &ConnIdChangeFrame{
		OldCID: binary.LittleEndian.Uint32(buf[1:5]),
		NewCID: binary.LittleEndian.Uint32(buf[5:9]),
	}, 9, nil
}

// FlowControlFrame advertises the sender's current receive window in bytes.
type FlowControlFrame struct {
	WindowSize uint32
}

func NewFlowControlFrame(window uint32) *FlowControlFrame {
	return &FlowControlFrame{WindowSize: window}
}

func (f *FlowControlFrame) Type() TypeID     { return TypeFlowControl }
func (f *FlowControlFrame) StreamID() uint16 { return 0 }
func (f *FlowControlFrame) Size() int  { return 5 }
func (f *FlowControlFrame) encode(b []byte) int {
	b[0] = byte(TypeFlowControl)
	binary.LittleEndian.PutUint32(b[1:5], f.WindowSize)
	return 5
}

func (f *FlowControlFrame) validate() error { return nil }

func parseFlowControl(buf []byte) (Frame, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrMalformedFrame
	}
	return &FlowControlFrame{WindowSize: binary.LittleEndian.Uint32(buf[1:5])}, 5, nil
}

// --- stream-scoped frames ---

// payloadFrame backs Answer and Error: type_id(1) + stream_id(2) +
// payload_len(2) + payload.
type payloadFrame struct {
	typ      TypeID
	sid      uint16
	Payload  []byte
}

func (f *payloadFrame) Type() TypeID     { return f.typ }
func (f *payloadFrame) StreamID() uint16 { return f.sid }
func (f *payloadFrame) Size() int  { return 5 + len(f.Payload) }
func (f *payloadFrame) encode(b []byte) int {
	b[0] = byte(f.typ)
	binary.LittleEndian.PutUint16(b[1:3], f.sid)
	binary.LittleEndian.PutUint16(b[3:5], uint16(len(f.Payload)))
	n := copy(b[5:], f.Payload)
	return 5 + n
}

func (f *payloadFrame) validate() error {
	if len(f.Payload) > maxPathLen {
		return ErrTooLong
	}
	return nil
}

func parsePayloadFrame(buf []byte, typ TypeID) (Frame, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrMalformedFrame
	}
	sid := binary.LittleEndian.Uint16(buf[1:3])
	plen := int(binary.LittleEndian.Uint16(buf[3:5]))
	if len(buf) < 5+plen {
		return nil, 0, ErrMalformedFrame
	}
	payload := make([]byte, plen)
	copy(payload, buf[5:5+plen])
	pf := &payloadFrame{typ: typ, sid: sid, Payload: payload}
	switch typ {
	case TypeAnswer:
		return &AnswerFrame{pf}, 5 + plen, nil
	case TypeError:
		return &ErrorFrame{pf}, 5 + plen, nil
	default:
		return pf, 5 + plen, nil
	}
}

// AnswerFrame carries a command's result data (e.g. a checksum digest).
type AnswerFrame struct{ *payloadFrame }

func NewAnswerFrame(streamID uint16, payload []byte) *AnswerFrame {
	return &AnswerFrame{&payloadFrame{typ: TypeAnswer, sid: streamID, Payload: payload}}
}

// ErrorFrame reports a stream-level failure with a UTF-8 message.
type ErrorFrame struct{ *payloadFrame }

func NewErrorFrame(streamID uint16, message string) *ErrorFrame {
	return &ErrorFrame{&payloadFrame{typ: TypeError, sid: streamID, Payload: []byte(message)}}
}

func (f *ErrorFrame) Message() string { return string(f.Payload) }

// DataFrame carries file bytes at Offset; an empty Payload signals EOF.
type DataFrame struct {
	sid     uint16
	Offset  uint64
	Payload []byte
}

func NewDataFrame(streamID uint16, offset uint64, payload []byte) *DataFrame {
	return &DataFrame{sid: streamID, Offset: offset, Payload: payload}
}

func (f *DataFrame) Type() TypeID     { return TypeData }
func (f *DataFrame) StreamID() uint16 { return f.sid }
func (f *DataFrame) Size() int  { return 15 + len(f.Payload) }
func (f *DataFrame) encode(b []byte) int {
	b[0] = byte(TypeData)
	binary.LittleEndian.PutUint16(b[1:3], f.sid)
	putU48(b[3:9], f.Offset)
	putU48(b[9:15], uint64(len(f.Payload)))
	n := copy(b[15:], f.Payload)
	return 15 + n
}

func (f *DataFrame) validate() error {
	if uint64(len(f.Payload)) > 1<<48-1 {
		return ErrTooLong
	}
	return nil
}

func parseData(buf []byte) (Frame, int, error) {
	if len(buf) < 15 {
		return nil, 0, ErrMalformedFrame
	}
	sid := binary.LittleEndian.Uint16(buf[1:3])
	offset := u48(buf[3:9])
	length := u48(buf[9:15])
	if uint64(len(buf)-15) < length {
		return nil, 0, ErrMalformedFrame
	}
	payload := make([]byte, length)
	copy(payload, buf[15:15+length])
	return &DataFrame{sid: sid, Offset: offset, Payload: payload}, 15 + int(length), nil
}

// ReadFrame requests bytes in [Offset, Offset+Length) of Path; Length==0
// means "to EOF". Checksum is an advisory CRC-32 the receiver may ignore.
type ReadFrame struct {
	sid      uint16
	Offset   uint64
	Length   uint64
	Flags    uint8
	Checksum uint32
	Path     string
}

func NewReadFrame(streamID uint16, path string, offset, length uint64) *ReadFrame {
	return &ReadFrame{sid: streamID, Path: path, Offset: offset, Length: length}
}

func (f *ReadFrame) Type() TypeID     { return TypeRead }
func (f *ReadFrame) StreamID() uint16 { return f.sid }
func (f *ReadFrame) Size() int  { return 22 + len(f.Path) }
func (f *ReadFrame) encode(b []byte) int {
	b[0] = byte(TypeRead)
	binary.LittleEndian.PutUint16(b[1:3], f.sid)
	putU48(b[3:9], f.Offset)
	putU48(b[9:15], f.Length)
	b[15] = f.Flags
	binary.LittleEndian.PutUint32(b[16:20], f.Checksum)
	binary.LittleEndian.PutUint16(b[20:22], uint16(len(f.Path)))
	n := copy(b[22:], f.Path)
	return 22 + n
}

func (f *ReadFrame) validate() error {
	if len(f.Path) > maxPathLen {
		return ErrTooLong
	}
	return nil
}

func parseRead(buf []byte) (Frame, int, error) {
	if len(buf) < 22 {
		return nil, 0, ErrMalformedFrame
	}
	sid := binary.LittleEndian.Uint16(buf[1:3])
	offset := u48(buf[3:9])
	length := u48(buf[9:15])
	flags := buf[15]
	crc := binary.LittleEndian.Uint32(buf[16:20])
	plen := int(binary.LittleEndian.Uint16(buf[20:22]))
	if len(buf) < 22+plen {
		return nil, 0, ErrMalformedFrame
	}
	path := buf[22 : 22+plen]
	if !utf8.Valid(path) {
		return nil, 0, ErrBadPath
	}
	return &ReadFrame{sid: sid, Offset: offset, Length: length, Flags: flags,
		Checksum: crc, Path: string(path)}, 22 + plen, nil
}

// WriteFrame announces an upcoming Data stream of Length bytes at Offset.
type WriteFrame struct {
	sid    uint16
	Offset uint64
	Length uint64
	Path   string
}

func NewWriteFrame(streamID uint16, path string, offset, length uint64) *WriteFrame {
	return &WriteFrame{sid: streamID, Path: path, Offset: offset, Length: length}
}

func (f *WriteFrame) Type() TypeID     { return TypeWrite }
func (f *WriteFrame) StreamID() uint16 { return f.sid }
func (f *WriteFrame) Size() int  { return 17 + len(f.Path) }
func (f *WriteFrame) encode(b []byte) int {
	b[0] = byte(TypeWrite)
	binary.LittleEndian.PutUint16(b[1:3], f.sid)
	putU48(b[3:9], f.Offset)
	putU48(b[9:15], f.Length)
	binary.LittleEndian.PutUint16(b[15:17], uint16(len(f.Path)))
	n := copy(b[17:], f.Path)
	return 17 + n
}

func (f *WriteFrame) validate() error {
	if len(f.Path) > maxPathLen {
		return ErrTooLong
	}
	return nil
}

func parseWrite(buf []byte) (Frame, int, error) {
	if len(buf) < 17 {
		return nil, 0, ErrMalformedFrame
	}
	sid := binary.LittleEndian.Uint16(buf[1:3])
	offset := u48(buf[3:9])
	length := u48(buf[9:15])
	plen := int(binary.LittleEndian.Uint16(buf[15:17]))
	if len(buf) < 17+plen {
		return nil, 0, ErrMalformedFrame
	}
	path := buf[17 : 17+plen]
	if !utf8.Valid(path) {
		return nil, 0, ErrBadPath
	}
	return &WriteFrame{sid: sid, Offset: offset, Length: length, Path: string(path)}, 17 + plen, nil
}

// pathFrame backs Checksum, Stat, and List: type_id(1) + stream_id(2) +
// payload_len(2) + path.
type pathFrame struct {
	typ  TypeID
	sid  uint16
	Path string
}

func (f *pathFrame) Type() TypeID     { return f.typ }
func (f *pathFrame) StreamID() uint16 { return f.sid }
func (f *pathFrame) Size() int  { return 5 + len(f.Path) }
func (f *pathFrame) encode(b []byte) int {
	b[0] = byte(f.typ)
	binary.LittleEndian.PutUint16(b[1:3], f.sid)
	binary.LittleEndian.PutUint16(b[3:5], uint16(len(f.Path)))
	n := copy(b[5:], f.Path)
	return 5 + n
}

func (f *pathFrame) validate() error {
	if len(f.Path) > maxPathLen {
		return ErrTooLong
	}
	return nil
}

func parsePathFrame(buf []byte, typ TypeID) (Frame, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrMalformedFrame
	}
	sid := binary.LittleEndian.Uint16(buf[1:3])
	plen := int(binary.LittleEndian.Uint16(buf[3:5]))
	if len(buf) < 5+plen {
		return nil, 0, ErrMalformedFrame
	}
	path := buf[5 : 5+plen]
	if !utf8.Valid(path) {
		return nil, 0, ErrBadPath
	}
	pf := &pathFrame{typ: typ, sid: sid, Path: string(path)}
	switch typ {
	case TypeChecksum:
		return &ChecksumFrame{pf}, 5 + plen, nil
	case TypeStat:
		return &StatFrame{pf}, 5 + plen, nil
	case TypeList:
		return &ListFrame{pf}, 5 + plen, nil
	default:
		return pf, 5 + plen, nil
	}
}

// ChecksumFrame requests the SHA-256 digest of Path.
type ChecksumFrame struct{ *pathFrame }

func NewChecksumFrame(streamID uint16, path string) *ChecksumFrame {
	return &ChecksumFrame{&pathFrame{typ: TypeChecksum, sid: streamID, Path: path}}
}

// StatFrame is reserved; handlers must reply Error("Not implemented").
type StatFrame struct{ *pathFrame }

func NewStatFrame(streamID uint16, path string) *StatFrame {
	return &StatFrame{&pathFrame{typ: TypeStat, sid: streamID, Path: path}}
}

// ListFrame is reserved; handlers must reply Error("Not implemented").
type ListFrame struct{ *pathFrame }

func NewListFrame(streamID uint16, path string) *ListFrame {
	return &ListFrame{&pathFrame{typ: TypeList, sid: streamID, Path: path}}
}
