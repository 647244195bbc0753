// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "errors"

var (
	// ErrChecksumMismatch reports that a packet's CRC-24 trailer does not
	// match the recomputed checksum of the datagram.
	ErrChecksumMismatch = errors.New("wire: checksum mismatch")

	// ErrMalformedFrame reports an unknown type_id, a truncated header, or
	// a declared payload length exceeding the remaining datagram bytes.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrBadPath reports a path payload that is not valid UTF-8.
	ErrBadPath = errors.New("wire: bad path encoding")

	// ErrTooLong reports a payload or path exceeding the wire format's
	// length-field range.
	ErrTooLong = errors.New("wire: value too long")
)
