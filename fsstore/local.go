// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fsstore

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
)

// Local is a Store backed by a directory on the local filesystem. Every
// name is resolved relative to Root; Local does not allow escaping Root.
type Local struct {
	Root string
}

// NewLocal returns a Local store rooted at root.
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(name string) (string, error) {
	p := filepath.Join(l.Root, filepath.Clean("/"+name))
	return p, nil
}

func (l *Local) Size(name string) (int64, error) {
	p, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (l *Local) ReadAt(name string, p []byte, off int64) (int, error) {
	path, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.ReadAt(p, off)
}

func (l *Local) WriteAt(name string, p []byte, off int64) (int, error) {
	path, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteAt(p, off)
}

func (l *Local) Hash(name string) ([]byte, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func (l *Local) Open(name string) (io.ReadCloser, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

var _ Store = (*Local)(nil)
var _ Opener = (*Local)(nil)
