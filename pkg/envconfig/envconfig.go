// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package envconfig

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// TokenConfig configures a single installation token exchange.
type TokenConfig struct {
	AppID            string        `envconfig:"GH_APP_ID" required:"true"`
	KeyFile          string        `envconfig:"GH_APP_KEYFILE" required:"true"`
	Owner            string        `envconfig:"GH_OWNER" required:"true"`
	Repo             string        `envconfig:"GH_REPO" required:"true"`
	APIURL           string        `envconfig:"GH_API_URL" required:"false" default:"https://api.github.com"`
	Timeout          time.Duration `envconfig:"GH_HTTP_TIMEOUT" required:"false" default:"30s"`
	MaxResponseBytes int64         `envconfig:"GH_MAX_RESPONSE_BYTES" required:"false" default:"1048576"`
	EventingIngress  string        `envconfig:"EVENT_INGRESS_URI" required:"false"`
}

// ServiceConfig configures the health/version HTTP service.
type ServiceConfig struct {
	Port    int    `envconfig:"PORT" required:"false" default:"8080"`
	GitSHA  string `envconfig:"GIT_SHA" required:"false" default:"dev"`
	Metrics bool   `envconfig:"METRICS" required:"false" default:"false"`
}

// TokenConfigFromEnv loads and validates a TokenConfig from the environment.
func TokenConfigFromEnv() (*TokenConfig, error) {
	cfg := new(TokenConfig)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values envconfig lets through: required variables that
// are set but empty, and unusable bounds.
func (c *TokenConfig) Validate() error {
	var err error
	for _, v := range []struct{ key, value string }{
		{"GH_APP_ID", c.AppID},
		{"GH_APP_KEYFILE", c.KeyFile},
		{"GH_OWNER", c.Owner},
		{"GH_REPO", c.Repo},
	} {
		if v.value == "" {
			err = errors.Join(err, fmt.Errorf("required key %s missing value", v.key))
		}
	}
	if u, perr := url.Parse(c.APIURL); perr != nil || u.Scheme == "" || u.Host == "" {
		err = errors.Join(err, fmt.Errorf("GH_API_URL %q is not an absolute URL", c.APIURL))
	}
	if c.Timeout <= 0 {
		err = errors.Join(err, fmt.Errorf("GH_HTTP_TIMEOUT must be positive, got %s", c.Timeout))
	}
	if c.MaxResponseBytes <= 0 {
		err = errors.Join(err, fmt.Errorf("GH_MAX_RESPONSE_BYTES must be positive, got %d", c.MaxResponseBytes))
	}
	return err
}

// ServiceConfigFromEnv loads a ServiceConfig from the environment.
func ServiceConfigFromEnv() (*ServiceConfig, error) {
	cfg := new(ServiceConfig)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
