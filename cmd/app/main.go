// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/chainguard-dev/clog"
	metrics "github.com/chainguard-dev/terraform-infra-common/pkg/httpmetrics"

	envConfig "github.com/cicd-demo/app/pkg/envconfig"
	"github.com/cicd-demo/app/pkg/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = clog.WithLogger(ctx, clog.New(slog.Default().Handler()))

	cfg, err := envConfig.ServiceConfigFromEnv()
	if err != nil {
		log.Panicf("failed to process env var: %s", err)
	}

	var handler http.Handler = service.New(cfg)
	if cfg.Metrics {
		go metrics.ServeMetrics()

		// Setup tracing.
		defer metrics.SetupTracer(ctx)()

		handler = metrics.Handler("app", handler)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			clog.WarnContextf(ctx, "shutdown: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "serving on %s (git_sha=%s)", srv.Addr, cfg.GitSHA)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Panic(err)
	}
}
