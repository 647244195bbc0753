// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streamhandler_test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/streamhandler"
	"code.hybscloud.com/rft/wire"
)

const loremFirstSentence = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."

const lorem334 = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur."

func runHandler(t *testing.T, store fsstore.Store, first wire.Frame, more ...wire.Frame) []wire.Frame {
	t.Helper()
	in := make(chan wire.Frame, 8)
	out := make(chan wire.Frame, 64)
	acks := make(chan streamhandler.AckHint, 64)

	in <- first
	for _, f := range more {
		in <- f
	}
	close(in)

	h := streamhandler.New(1, store, in, out, acks)
	h.Run()
	close(out)
	close(acks)

	var frames []wire.Frame
	for f := range out {
		frames = append(frames, f)
	}
	return frames
}

func TestChecksumMatchesSHA256Vector(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testfile.txt"), []byte(loremFirstSentence), 0o644))
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewChecksumFrame(1, "testfile.txt"))

	require.Len(t, frames, 1)
	answer, ok := frames[0].(*wire.AnswerFrame)
	require.True(t, ok)
	assert.Equal(t, "973153f86ec2da1748e63f0cf85b89835b42f8ee8018c549868a1308a19f6ca3", hex.EncodeToString(answer.Payload))
}

func TestChecksumMissingFileReportsOSError(t *testing.T) {
	dir := t.TempDir()
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewChecksumFrame(1, "err_testfile.txt"))

	require.Len(t, frames, 1)
	ef, ok := frames[0].(*wire.ErrorFrame)
	require.True(t, ok)
	assert.Equal(t, "No such file or directory (os error 2)", ef.Message())
}

func TestWriteHappyPath(t *testing.T) {
	dir := t.TempDir()
	store := fsstore.NewLocal(dir)
	payload := []byte(lorem334)

	frames := runHandler(t, store,
		wire.NewWriteFrame(1, "out.txt", 0, uint64(len(payload))),
		wire.NewDataFrame(1, 0, payload[:128]),
		wire.NewDataFrame(1, 128, payload[128:334]),
		wire.NewDataFrame(1, 334, nil),
	)
	assert.Empty(t, frames) // Acks are hinted to the engine, not emitted directly.

	got, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteOffsetMismatchErrors(t *testing.T) {
	dir := t.TempDir()
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewWriteFrame(1, "out.txt", 10, 10))

	require.Len(t, frames, 1)
	ef, ok := frames[0].(*wire.ErrorFrame)
	require.True(t, ok)
	assert.Equal(t, "Write offset does not match current file size", ef.Message())
}

func TestReadWholeFileEmitsDataThenEOF(t *testing.T) {
	dir := t.TempDir()
	content := []byte(loremFirstSentence)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), content, 0o644))
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewReadFrame(1, "f.txt", 0, 0))

	require.NotEmpty(t, frames)
	var reassembled []byte
	for _, f := range frames {
		df := f.(*wire.DataFrame)
		reassembled = append(reassembled, df.Payload...)
	}
	assert.Equal(t, content, reassembled)

	last := frames[len(frames)-1].(*wire.DataFrame)
	assert.Empty(t, last.Payload)
	assert.Equal(t, uint64(len(content)), last.Offset)
}

func TestReadOffsetEqualsSizeProducesSingleEOF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hi"), 0o644))
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewReadFrame(1, "f.txt", 2, 0))

	require.Len(t, frames, 1)
	df := frames[0].(*wire.DataFrame)
	assert.Empty(t, df.Payload)
	assert.Equal(t, uint64(2), df.Offset)
}

func TestStatAndListAreNotImplemented(t *testing.T) {
	dir := t.TempDir()
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewStatFrame(1, "f.txt"))
	require.Len(t, frames, 1)
	assert.Equal(t, "Not implemented", frames[0].(*wire.ErrorFrame).Message())

	frames = runHandler(t, store, wire.NewListFrame(1, "f.txt"))
	require.Len(t, frames, 1)
	assert.Equal(t, "Not implemented", frames[0].(*wire.ErrorFrame).Message())
}

func TestIllegalInitialFrame(t *testing.T) {
	dir := t.TempDir()
	store := fsstore.NewLocal(dir)

	frames := runHandler(t, store, wire.NewAckFrame(1))
	require.Len(t, frames, 1)
	assert.Equal(t, "Illegal initial frame", frames[0].(*wire.ErrorFrame).Message())
}
