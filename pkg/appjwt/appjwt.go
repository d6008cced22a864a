// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package appjwt mints the short-lived JWT a GitHub App presents to
// authenticate as itself.
package appjwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	// Backdate iat to tolerate clock drift between us and GitHub.
	Backdate = 30 * time.Second
	// GitHub rejects App JWTs that live longer than 10 minutes.
	Lifetime = 9 * time.Minute
)

var (
	ErrReadKey  = errors.New("reading private key")
	ErrParseKey = errors.New("parsing private key")
)

// LoadKeyFile reads a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func LoadKeyFile(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadKey, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParseKey, path, err)
	}
	return key, nil
}

// Assertion is a signed App JWT together with its validity window.
type Assertion struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Minter signs App JWTs.
type Minter struct {
	AppID  string
	Signer ghinstallation.Signer
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Minter that signs with key using RS256.
func New(appID string, key *rsa.PrivateKey) *Minter {
	return &Minter{
		AppID:  appID,
		Signer: ghinstallation.NewRSASigner(jwt.SigningMethodRS256, key),
		Now:    time.Now,
	}
}

// Mint signs a fresh assertion with iat = now-30s and exp = now+9m.
func (m *Minter) Mint() (Assertion, error) {
	if m.AppID == "" {
		return Assertion{}, errors.New("app id is empty")
	}
	if m.Signer == nil {
		return Assertion{}, errors.New("no signer configured")
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	// GitHub rejects fractional timestamps.
	t := now().Truncate(time.Second)
	a := Assertion{
		IssuedAt:  t.Add(-Backdate),
		ExpiresAt: t.Add(Lifetime),
	}

	tok, err := m.Signer.Sign(&jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(a.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(a.ExpiresAt),
		Issuer:    m.AppID,
	})
	if err != nil {
		return Assertion{}, fmt.Errorf("signing app jwt: %w", err)
	}
	a.Token = tok
	return a, nil
}
