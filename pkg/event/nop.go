// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"errors"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"
)

var _ cloudevents.Client = NopClient{}

// NopClient drops every event. It is used when no ingress is configured.
type NopClient struct{}

func (NopClient) Send(context.Context, cloudevents.Event) protocol.Result {
	return nil
}

func (NopClient) Request(context.Context, cloudevents.Event) (*cloudevents.Event, protocol.Result) {
	return nil, errors.New("request is not supported by the no-op client")
}

func (NopClient) StartReceiver(context.Context, interface{}) error {
	return errors.New("receiving is not supported by the no-op client")
}
