// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package ghtransport

import (
	"net/http"

	"github.com/cicd-demo/app/pkg/maxsize"
)

// AcceptHeader is the media type GitHub recommends for REST calls.
const AcceptHeader = "application/vnd.github+json"

// Transport authenticates requests as a GitHub App using a pre-signed JWT.
type Transport struct {
	// Base is the underlying RoundTripper; http.DefaultTransport when nil.
	Base http.RoundTripper
	// JWT is presented as the bearer credential.
	JWT string
}

// New returns a Transport presenting jwt on every request, with response
// bodies capped at maxBodySize bytes.
func New(base http.RoundTripper, jwt string, maxBodySize int64) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base: maxsize.NewRoundTripper(maxBodySize, base),
		JWT:  jwt,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.JWT)
	req.Header.Set("Accept", AcceptHeader)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
