// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fsstore defines the filesystem contract the stream handler
// consumes (positioned read, append-only write, metadata length, and
// full-file SHA-256 hash) and a local-disk implementation of it. The
// contract is intentionally narrow so that other backends — an
// object-store one, for instance — can stand in without the stream
// handler knowing the difference.
package fsstore

import "io"

// Store is the positioned read/write/metadata/hash contract a
// streamhandler.Handler performs file I/O through.
type Store interface {
	// Size returns the current length of name, or an error satisfying
	// os.IsNotExist if it does not exist.
	Size(name string) (int64, error)

	// ReadAt reads len(p) bytes of name starting at off, the same
	// semantics as io.ReaderAt.
	ReadAt(name string, p []byte, off int64) (int, error)

	// WriteAt appends p to name at off. name is created if absent. off
	// must equal the file's current size; callers enforce the
	// append-only invariant before calling WriteAt.
	WriteAt(name string, p []byte, off int64) (int, error)

	// Hash returns the SHA-256 digest of the full contents of name.
	Hash(name string) ([]byte, error)
}

// Opener is satisfied by backends that expose a streaming reader in
// addition to the positioned Store contract. The stream handler does not
// call Open; its Checksum command goes through Store.Hash.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}
