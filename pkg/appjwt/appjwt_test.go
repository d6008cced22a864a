// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package appjwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintClaims(t *testing.T) {
	key := generateKey(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m := New("123456", key)
	m.Now = func() time.Time { return now }

	a, err := m.Mint()
	require.NoError(t, err)

	assert.Equal(t, now.Add(-30*time.Second), a.IssuedAt)
	assert.Equal(t, now.Add(9*time.Minute), a.ExpiresAt)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	).ParseWithClaims(a.Token, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	assert.Equal(t, "123456", claims.Issuer)
	assert.Equal(t, now.Unix()-30, claims.IssuedAt.Unix())
	assert.Equal(t, int64(570), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
}

func TestMintTruncatesToSeconds(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 999_000_000, time.UTC)

	m := New("1", generateKey(t))
	m.Now = func() time.Time { return now }

	a, err := m.Mint()
	require.NoError(t, err)
	assert.Equal(t, 570*time.Second, a.ExpiresAt.Sub(a.IssuedAt))
	assert.Zero(t, a.IssuedAt.Nanosecond())
}

func TestMintWallClock(t *testing.T) {
	m := New("42", generateKey(t))

	before := time.Now().Truncate(time.Second)
	a, err := m.Mint()
	require.NoError(t, err)
	after := time.Now()

	assert.False(t, a.IssuedAt.Before(before.Add(-Backdate)))
	assert.False(t, a.IssuedAt.After(after.Add(-Backdate)))
	assert.LessOrEqual(t, a.ExpiresAt.Sub(a.IssuedAt), 10*time.Minute)
}

type failingSigner struct{}

func (failingSigner) Sign(jwt.Claims) (string, error) {
	return "", errors.New("hsm offline")
}

func TestMintErrors(t *testing.T) {
	tests := []struct {
		name string
		m    *Minter
	}{{
		name: "no app id",
		m:    &Minter{Signer: failingSigner{}},
	}, {
		name: "no signer",
		m:    &Minter{AppID: "1"},
	}, {
		name: "signer failure",
		m:    &Minter{AppID: "1", Signer: failingSigner{}},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.Mint()
			assert.Error(t, err)
		})
	}
}

func TestLoadKeyFile(t *testing.T) {
	key := generateKey(t)
	dir := t.TempDir()

	pkcs1 := filepath.Join(dir, "pkcs1.pem")
	writePEM(t, pkcs1, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := filepath.Join(dir, "pkcs8.pem")
	writePEM(t, pkcs8, "PRIVATE KEY", der)

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))

	for _, path := range []string{pkcs1, pkcs8} {
		got, err := LoadKeyFile(path)
		require.NoError(t, err, path)
		assert.True(t, key.Equal(got), path)
	}

	_, err = LoadKeyFile(filepath.Join(dir, "missing.pem"))
	assert.ErrorIs(t, err, ErrReadKey)

	_, err = LoadKeyFile(garbage)
	assert.ErrorIs(t, err, ErrParseKey)
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return key
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	b := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
}
