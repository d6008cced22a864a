// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service serves the health and version endpoints.
package service

import (
	"encoding/json"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/mux"

	envConfig "github.com/cicd-demo/app/pkg/envconfig"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	GitSHA string `json:"git_sha"`
}

// New returns the service router. Both responses are fixed once cfg is
// loaded.
func New(cfg *envConfig.ServiceConfig) *mux.Router {
	version := VersionResponse{GitSHA: cfg.GitSHA}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, HealthResponse{Status: "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, version)
	}).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		clog.FromContext(r.Context()).Errorf("error writing response: %v", err)
	}
}
