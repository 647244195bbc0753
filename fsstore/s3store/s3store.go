// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package s3store implements fsstore.Store over an S3-compatible object
// store, for deployments that want the server's served/written directory
// backed by a bucket instead of a local disk.
package s3store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"code.hybscloud.com/rft/fsstore"
)

// Store is an fsstore.Store backed by one S3 bucket. Every operation
// round-trips to the object store; there is no local caching layer.
type Store struct {
	cli    *s3.Client
	bucket string
	ctx    context.Context
}

// New loads AWS credentials and region from the environment (the default
// credential chain) and returns a Store bound to bucket.
func New(ctx context.Context, bucket string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}
	return &Store{cli: s3.NewFromConfig(cfg), bucket: bucket, ctx: ctx}, nil
}

// Size returns the object's ContentLength via HeadObject. A missing
// object is reported as an error satisfying os.IsNotExist.
func (s *Store) Size(name string) (int64, error) {
	out, err := s.cli.HeadObject(s.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, &os.PathError{Op: "head", Path: name, Err: os.ErrNotExist}
		}
		return 0, err
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("s3store: %s: missing content-length", name)
	}
	return *out.ContentLength, nil
}

// ReadAt fetches len(p) bytes of name starting at off via a ranged
// GetObject request.
func (s *Store) ReadAt(name string, p []byte, off int64) (int, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	out, err := s.cli.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	return io.ReadFull(out.Body, p)
}

// WriteAt appends p to name at off. Object stores have no in-place append,
// so off==0 and the object does not exist, or off equals the object's
// current size: this reads back the existing bytes (if any) and re-puts
// the concatenation, matching the append-only contract the stream handler
// already enforces at a higher level.
func (s *Store) WriteAt(name string, p []byte, off int64) (int, error) {
	var prefix []byte
	if off > 0 {
		size, err := s.Size(name)
		if err != nil {
			return 0, err
		}
		prefix = make([]byte, size)
		if _, err := s.ReadAt(name, prefix, 0); err != nil {
			return 0, err
		}
	}

	body := append(prefix, p...)
	_, err := s.cli.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Hash streams the full object through SHA-256 via GetObject.
func (s *Store) Hash(name string) ([]byte, error) {
	out, err := s.cli.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	h := sha256.New()
	if _, err := io.Copy(h, out.Body); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Open returns a streaming reader over name's full contents, satisfying
// fsstore.Opener.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	out, err := s.cli.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

var _ fsstore.Store = (*Store)(nil)
var _ fsstore.Opener = (*Store)(nil)
