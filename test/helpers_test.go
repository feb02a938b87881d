//go:build integration
// +build integration

package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	sessionkit "github.com/verinews/sessionkit"
	"github.com/verinews/sessionkit/gatewaytest"
	"github.com/verinews/sessionkit/record"
)

func newIntegrationRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newIntegrationTab(t *testing.T, backend *gatewaytest.Server, records record.Store) *sessionkit.SessionStore {
	t.Helper()

	cfg := sessionkit.DefaultConfig()
	cfg.Backend.BaseURL = backend.URL()

	store, err := sessionkit.New().
		WithConfig(cfg).
		WithRecordStore(records).
		Build()
	if err != nil {
		t.Fatalf("build store failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}
