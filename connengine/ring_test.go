// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingStoreAndGet(t *testing.T) {
	r := newSentPacketRing(4)
	r.store(1, []byte("hello"))
	buf, ok := r.get(1)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), buf)
	assert.Equal(t, 5, r.sizeOf(1))
}

func TestRingWrapsByModulo(t *testing.T) {
	r := newSentPacketRing(4)
	r.store(1, []byte("a"))
	r.store(5, []byte("b")) // 5 % 4 == 1, overwrites slot of packet 1
	buf, ok := r.get(5)
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), buf)
}

func TestRingGetMissing(t *testing.T) {
	r := newSentPacketRing(4)
	_, ok := r.get(99)
	assert.False(t, ok)
}
