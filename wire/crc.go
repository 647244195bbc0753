// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "hash/crc32"

// checksum24 computes the low 24 bits of the IEEE CRC-32 of buf. Callers
// must zero the checksum field's three bytes before calling this, both when
// assembling and when validating a received datagram.
func checksum24(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf) & 0x00FFFFFF
}
