// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lossoracle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"code.hybscloud.com/rft/lossoracle"
)

func TestAlternatesWhenPAndQAreExtreme(t *testing.T) {
	o := lossoracle.NewSeeded(1.0, 0.0, 1)
	for i := 0; i < 10; i++ {
		want := i%2 == 0
		assert.Equal(t, want, o.Next(), "iteration %d", i)
	}
}

func TestNeverDropsWhenPAndQAreZero(t *testing.T) {
	o := lossoracle.NewSeeded(0, 0, 1)
	for i := 0; i < 50; i++ {
		assert.False(t, o.Next())
	}
}

func TestAlwaysDropsWhenPAndQAreOne(t *testing.T) {
	o := lossoracle.NewSeeded(1, 1, 1)
	for i := 0; i < 50; i++ {
		assert.True(t, o.Next())
	}
}
