// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package maxsize

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrBodyTooLarge is returned from reads past the configured limit.
var ErrBodyTooLarge = errors.New("response body too large")

// NewRoundTripper creates a new http.RoundTripper that wraps the given
// http.RoundTripper and fails reads of response bodies larger than maxSize
// bytes.
func NewRoundTripper(maxSize int64, inner http.RoundTripper) http.RoundTripper {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &ms{
		base:        inner,
		maxBodySize: maxSize,
	}
}

type ms struct {
	base        http.RoundTripper // The underlying RoundTripper
	maxBodySize int64             // Maximum allowed response body size in bytes
}

// RoundTrip implements http.RoundTripper
func (rt *ms) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > rt.maxBodySize {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s declared %d bytes, limit is %d",
			ErrBodyTooLarge, req.Method, req.URL.Path, resp.ContentLength, rt.maxBodySize)
	}

	resp.Body = &lr{
		r:     resp.Body,
		n:     rt.maxBodySize,
		limit: rt.maxBodySize,
	}
	return resp, nil
}

// lr reads at most limit bytes; unlike io.LimitedReader it reports overflow
// instead of a clean EOF.
type lr struct {
	r     io.ReadCloser
	n     int64
	limit int64
}

func (l *lr) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, l.limit)
	}
	// Read one byte past the limit so overflow is observable.
	if l.n < int64(len(p))-1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n + int(l.n), fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, l.limit)
	}
	return n, err
}

// Close implements io.Closer
func (l *lr) Close() error {
	return l.r.Close()
}
