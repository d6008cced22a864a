// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command ghapp-token prints a GitHub App installation access token for the
// repository named by GH_OWNER/GH_REPO.
//
// The token is the only thing written to standard output; diagnostics go to
// standard error.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chainguard-dev/clog"
	mce "github.com/chainguard-dev/terraform-infra-common/pkg/httpmetrics/cloudevents"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	envConfig "github.com/cicd-demo/app/pkg/envconfig"
	"github.com/cicd-demo/app/pkg/event"
	"github.com/cicd-demo/app/pkg/minter"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = clog.WithLogger(ctx, clog.New(slog.Default().Handler()))

	err := run(ctx, os.Stdout)
	cancel()
	if err != nil {
		log.Fatalf("ghapp-token: %v", err)
	}
}

// run mints a token and writes it to stdout. Nothing is written unless both
// API calls succeed.
func run(ctx context.Context, stdout io.Writer, opts ...minter.Option) error {
	cfg, err := envConfig.TokenConfigFromEnv()
	if err != nil {
		return &minter.Error{Kind: minter.KindConfig, Step: minter.StepConfig, Err: err}
	}

	var ceclient cloudevents.Client = event.NopClient{}
	if cfg.EventingIngress != "" {
		ceclient, err = mce.NewClientHTTP("ghapp-token", mce.WithTarget(ctx, cfg.EventingIngress)...)
		if err != nil {
			return &minter.Error{Kind: minter.KindConfig, Step: minter.StepConfig, Err: fmt.Errorf("creating cloudevents client: %w", err)}
		}
	}

	m, err := minter.New(cfg, append([]minter.Option{minter.WithEventClient(ceclient)}, opts...)...)
	if err != nil {
		return err
	}
	clog.InfoContextf(ctx, "minting with %s", m)

	tok, err := m.Mint(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, tok.Value)
	return err
}
