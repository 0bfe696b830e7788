package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// serverEnv holds deployment switches that are not gameplay tuning.
type serverEnv struct {
	ServerID        string `env:"SERVER_ID" envDefault:"totem_1"`
	DeployEnv       string `env:"DEPLOY_ENV"`
	EnableAdminHTTP *bool  `env:"ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"ENABLE_PPROF_HTTP"`
	AdminToken      string `env:"ADMIN_TOKEN"`

	IndexBackend string `env:"INDEX_BACKEND" envDefault:"sqlite"`
	D1IngestURL  string `env:"INDEX_D1_INGEST_URL"`
	D1Token      string `env:"INDEX_D1_TOKEN"`
	D1FlushMS    int    `env:"INDEX_D1_FLUSH_MS" envDefault:"500"`
	D1BatchSize  int    `env:"INDEX_D1_BATCH_SIZE" envDefault:"128"`
}

func loadServerEnv() (serverEnv, error) {
	var e serverEnv
	if err := env.ParseWithOptions(&e, env.Options{Prefix: "TOTEM_"}); err != nil {
		return e, fmt.Errorf("server env: %w", err)
	}
	return e, nil
}

// adminHTTP defaults to on outside staging and production.
func (e serverEnv) adminHTTP() bool {
	if e.EnableAdminHTTP != nil {
		return *e.EnableAdminHTTP
	}
	switch e.DeployEnv {
	case "staging", "production":
		return false
	default:
		return true
	}
}
