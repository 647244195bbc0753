// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemConnDeliversToAddressedPeer(t *testing.T) {
	hub := NewMemHub()
	a := hub.NewMemConn("a")
	b := hub.NewMemConn("b")

	require.NoError(t, a.SendTo(b.LocalAddr(), []byte("hello")))

	dg, err := b.ReceiveFrom()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), dg.Payload)
	assert.Equal(t, a.LocalAddr(), dg.From)
}

func TestMemConnSendToUnknownAddressErrors(t *testing.T) {
	hub := NewMemHub()
	a := hub.NewMemConn("a")

	err := a.SendTo(memAddr("ghost"), []byte("x"))
	assert.Error(t, err)
}

func TestMemConnCloseUnblocksReceive(t *testing.T) {
	hub := NewMemHub()
	a := hub.NewMemConn("a")

	done := make(chan error, 1)
	go func() {
		_, err := a.ReceiveFrom()
		done <- err
	}()
	require.NoError(t, a.Close())
	assert.ErrorIs(t, <-done, ErrClosed)
}
