// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package minter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/go-github/v75/github"

	"github.com/cicd-demo/app/pkg/appjwt"
	envConfig "github.com/cicd-demo/app/pkg/envconfig"
	"github.com/cicd-demo/app/pkg/event"
	"github.com/cicd-demo/app/pkg/ghtransport"
)

const (
	retryDelay = 10 * time.Millisecond
	maxRetry   = 3
)

// Token is a GitHub App installation access token.
type Token struct {
	Value          string
	ExpiresAt      time.Time
	InstallationID int64
}

// Minter exchanges a GitHub App's private key for an installation access
// token scoped to one repository's installation.
type Minter struct {
	jwt      *appjwt.Minter
	owner    string
	repo     string
	baseURL  *url.URL
	timeout  time.Duration
	maxBody  int64
	base     http.RoundTripper
	ceclient cloudevents.Client
}

// Option configures a Minter.
type Option func(*Minter)

// WithClock overrides the time source used for JWT claims.
func WithClock(now func() time.Time) Option {
	return func(m *Minter) {
		m.jwt.Now = now
	}
}

// WithTransport sets the RoundTripper beneath the App authentication layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(m *Minter) {
		m.base = rt
	}
}

// WithEventClient sets the client audit events are delivered through.
func WithEventClient(c cloudevents.Client) Option {
	return func(m *Minter) {
		m.ceclient = c
	}
}

// New loads the App credential named by cfg. The key file is read exactly
// once, here.
func New(cfg *envConfig.TokenConfig, opts ...Option) (*Minter, error) {
	if cfg == nil {
		return nil, &Error{Kind: KindConfig, Step: StepConfig, Err: errors.New("no configuration")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: KindConfig, Step: StepConfig, Err: err}
	}
	// go-github resolves paths relative to BaseURL, which needs a trailing slash.
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
	if err != nil {
		return nil, &Error{Kind: KindConfig, Step: StepConfig, Err: err}
	}

	key, err := appjwt.LoadKeyFile(cfg.KeyFile)
	switch {
	case errors.Is(err, appjwt.ErrReadKey):
		return nil, &Error{Kind: KindConfig, Step: StepKey, Err: err}
	case err != nil:
		return nil, &Error{Kind: KindSigning, Step: StepKey, Err: err}
	}

	m := &Minter{
		jwt:      appjwt.New(cfg.AppID, key),
		owner:    cfg.Owner,
		repo:     cfg.Repo,
		baseURL:  baseURL,
		timeout:  cfg.Timeout,
		maxBody:  cfg.MaxResponseBytes,
		base:     http.DefaultTransport,
		ceclient: event.NopClient{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mint signs a fresh App JWT, resolves the installation for the configured
// repository and creates an access token for it. Every failure is returned
// as an *Error; nothing is retried.
func (m *Minter) Mint(ctx context.Context) (_ *Token, err error) {
	log := clog.FromContext(ctx).With("owner", m.owner, "repo", m.repo)
	ctx = clog.WithLogger(ctx, log)

	e := event.Event{
		Owner: m.owner,
		Repo:  m.repo,
		AppID: m.jwt.AppID,
	}
	defer func() {
		if err != nil {
			e.Error = err.Error()
		}
		m.emit(ctx, e)
	}()

	assertion, err := m.jwt.Mint()
	if err != nil {
		return nil, &Error{Kind: KindSigning, Step: StepSign, Err: err}
	}
	log.Debugf("signed app jwt valid from %s until %s", assertion.IssuedAt, assertion.ExpiresAt)

	client := github.NewClient(&http.Client{
		Transport: ghtransport.New(m.base, assertion.Token, m.maxBody),
	})
	client.BaseURL = m.baseURL

	e.InstallationID, err = m.lookupInstall(ctx, client)
	if err != nil {
		return nil, err
	}
	log.Infof("found installation %d", e.InstallationID)

	tok, err := m.createToken(ctx, client, e.InstallationID)
	if err != nil {
		return nil, err
	}
	e.SetToken(tok.Value)
	log.Infof("created installation token expiring at %s", tok.ExpiresAt)

	return tok, nil
}

func (m *Minter) lookupInstall(ctx context.Context, client *github.Client) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	install, resp, err := client.Apps.FindRepositoryInstallation(ctx, m.owner, m.repo)
	if err != nil {
		return 0, classify(StepInstall, resp, err)
	}
	if install.GetID() == 0 {
		return 0, &Error{Kind: KindResponse, Step: StepInstall, Err: errors.New(`response has no "id"`)}
	}
	return install.GetID(), nil
}

func (m *Minter) createToken(ctx context.Context, client *github.Client, id int64) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, resp, err := client.Apps.CreateInstallationToken(ctx, id, &github.InstallationTokenOptions{})
	if err != nil {
		return nil, classify(StepAccessToken, resp, err)
	}
	if tok.GetToken() == "" {
		return nil, &Error{Kind: KindResponse, Step: StepAccessToken, Err: errors.New(`response has no "token"`)}
	}
	return &Token{
		Value:          tok.GetToken(),
		ExpiresAt:      tok.GetExpiresAt().Time,
		InstallationID: id,
	}, nil
}

// emit delivers the audit event. Delivery failures are logged, never returned.
func (m *Minter) emit(ctx context.Context, e event.Event) {
	ce, err := e.CloudEvent()
	if err != nil {
		clog.WarnContextf(ctx, "Failed to encode event payload: %v", err)
		return
	}
	rctx := cloudevents.ContextWithRetriesExponentialBackoff(context.WithoutCancel(ctx), retryDelay, maxRetry)
	if ceresult := m.ceclient.Send(rctx, ce); cloudevents.IsUndelivered(ceresult) || cloudevents.IsNACK(ceresult) {
		clog.ErrorContextf(ctx, "Failed to deliver event: %v", ceresult)
	}
}

// String describes the target without exposing credentials.
func (m *Minter) String() string {
	return fmt.Sprintf("minter(app=%s, %s/%s via %s)", m.jwt.AppID, m.owner, m.repo, m.baseURL)
}
