// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent(t *testing.T) {
	e := Event{
		Owner:          "octo",
		Repo:           "demo",
		AppID:          "1234",
		InstallationID: 12345,
	}
	e.SetToken("ghs_abc123")

	ce, err := e.CloudEvent()
	require.NoError(t, err)

	assert.Equal(t, Type, ce.Type())
	assert.Equal(t, Source, ce.Source())
	assert.Equal(t, "octo/demo", ce.Subject())

	var got Event
	require.NoError(t, ce.DataAs(&got))
	if diff := cmp.Diff(e, got); diff != "" {
		t.Errorf("event payload (-want +got):\n%s", diff)
	}
	assert.NotContains(t, string(ce.Data()), "ghs_abc123")
	assert.Len(t, got.TokenSHA256, 64)
}

func TestNopClient(t *testing.T) {
	ce, err := Event{Owner: "octo", Repo: "demo"}.CloudEvent()
	require.NoError(t, err)

	c := NopClient{}
	assert.Nil(t, c.Send(context.Background(), ce))
	_, res := c.Request(context.Background(), ce)
	assert.Error(t, res)
}
