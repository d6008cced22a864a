// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package minter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v75/github"

	"github.com/cicd-demo/app/pkg/maxsize"
)

// Kind classifies why a mint failed.
type Kind int

const (
	KindConfig   Kind = iota + 1 // missing or invalid configuration, unreadable key file
	KindSigning                  // malformed key or JWT signing failure
	KindNetwork                  // transport failure or timeout
	KindAPI                      // non-2xx response from GitHub
	KindResponse                 // 2xx response missing an expected field
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindSigning:
		return "signing error"
	case KindNetwork:
		return "network error"
	case KindAPI:
		return "api error"
	case KindResponse:
		return "response parse error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error reports which step of the exchange failed and why.
type Error struct {
	Kind Kind
	Step string
	// StatusCode is set for KindAPI.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Step, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a mint error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// Step names.
const (
	StepConfig      = "load configuration"
	StepKey         = "load private key"
	StepSign        = "sign app jwt"
	StepInstall     = "lookup installation"
	StepAccessToken = "create access token"
)

// classify turns the result of a go-github call into an *Error.
func classify(step string, resp *github.Response, err error) *Error {
	var (
		ghErr  *github.ErrorResponse
		rlErr  *github.RateLimitError
		arlErr *github.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &ghErr):
		return &Error{Kind: KindAPI, Step: step, StatusCode: ghErr.Response.StatusCode, Err: err}
	case errors.As(err, &rlErr):
		return &Error{Kind: KindAPI, Step: step, StatusCode: rlErr.Response.StatusCode, Err: err}
	case errors.As(err, &arlErr):
		return &Error{Kind: KindAPI, Step: step, StatusCode: arlErr.Response.StatusCode, Err: err}
	case resp != nil && resp.Response != nil && !successful(resp.StatusCode):
		return &Error{Kind: KindAPI, Step: step, StatusCode: resp.StatusCode, Err: err}
	case isDecodeError(err), errors.Is(err, maxsize.ErrBodyTooLarge):
		return &Error{Kind: KindResponse, Step: step, Err: err}
	case resp != nil && resp.Response != nil:
		// The round trip completed with a 2xx but reading the body failed.
		return &Error{Kind: KindResponse, Step: step, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindNetwork, Step: step, Err: fmt.Errorf("timed out: %w", err)}
	default:
		return &Error{Kind: KindNetwork, Step: step, Err: err}
	}
}

func successful(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func isDecodeError(err error) bool {
	var (
		syntax *json.SyntaxError
		typ    *json.UnmarshalTypeError
	)
	return errors.As(err, &syntax) || errors.As(err, &typ)
}
