// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

// defaultRingSize (R) must exceed the largest attainable window in
// packets; 2048 is the reference default from the design notes.
const defaultRingSize = 2048

// sentPacketRing is the TX task's fixed-capacity retransmission buffer,
// indexed by packet_id mod R. It is owned exclusively by the TX task; no
// other goroutine touches it.
type sentPacketRing struct {
	bytes [][]byte
	sizes []int
}

func newSentPacketRing(size int) *sentPacketRing {
	return &sentPacketRing{bytes: make([][]byte, size), sizes: make([]int, size)}
}

func (r *sentPacketRing) store(packetID uint32, buf []byte) {
	idx := int(packetID) % len(r.bytes)
	r.bytes[idx] = buf
	r.sizes[idx] = len(buf)
}

func (r *sentPacketRing) get(packetID uint32) ([]byte, bool) {
	idx := int(packetID) % len(r.bytes)
	b := r.bytes[idx]
	return b, b != nil
}

func (r *sentPacketRing) sizeOf(packetID uint32) int {
	return r.sizes[int(packetID)%len(r.sizes)]
}
