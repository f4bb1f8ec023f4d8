package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/pushclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.DeliveryResult{Success: true, Delivered: true})
	}))
	defer srv.Close()

	client := pushclient.New(&config.PushConfig{BaseURL: srv.URL}, logger.Discard())
	ctx := context.Background()

	ok, err := run(ctx, client, "notify", []string{"-user", "u-1", "-title", "hi"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = run(ctx, client, "location", []string{"-order", "42", "-lat", "10.77", "-lon", "106.7"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = run(ctx, client, "status", []string{"-order", "42", "-status", "COOKING"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = run(ctx, client, "customer-location", []string{"-order", "42", "-lat", "10", "-lon", "106"})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"/api/notify", "/api/location", "/api/order-status", "/api/customer-location"}, paths)
}

func TestRun_Validation(t *testing.T) {
	client := pushclient.New(&config.PushConfig{BaseURL: "http://127.0.0.1:1"}, logger.Discard())
	ctx := context.Background()

	for _, tc := range []struct {
		command string
		args    []string
	}{
		{"notify", nil},
		{"location", []string{"-lat", "1", "-lon", "1"}},
		{"location", []string{"-order", "1", "-lat", "95", "-lon", "1"}},
		{"status", []string{"-order", "1", "-status", "LOST"}},
		{"teleport", nil},
	} {
		_, err := run(ctx, client, tc.command, tc.args)
		assert.Error(t, err, tc.command)
	}
}
