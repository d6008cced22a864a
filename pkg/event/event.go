// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

const (
	// Type of the audit event emitted for every mint attempt.
	Type   = "dev.ghapp-token.mint"
	Source = "https://github.com/cicd-demo/app"
)

// Event records the outcome of an installation token exchange. It never
// carries the token itself.
type Event struct {
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	AppID          string `json:"app_id"`
	InstallationID int64  `json:"installation_id,omitempty"`
	TokenSHA256    string `json:"token_sha256,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SetToken records the SHA-256 of tok.
func (e *Event) SetToken(tok string) {
	hash := sha256.Sum256([]byte(tok))
	e.TokenSHA256 = hex.EncodeToString(hash[:])
}

// CloudEvent wraps e in a CloudEvent envelope.
func (e Event) CloudEvent() (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetType(Type)
	ce.SetSubject(fmt.Sprintf("%s/%s", e.Owner, e.Repo))
	ce.SetSource(Source)
	if err := ce.SetData(cloudevents.ApplicationJSON, e); err != nil {
		return ce, err
	}
	return ce, nil
}
