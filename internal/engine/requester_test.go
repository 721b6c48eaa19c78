package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

func TestHTTPRequester_Do(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `","count":3}`))
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	h := NewHTTPRequester(srv.Client())
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		path   string
		body   ir.Value
		want   ir.Value
	}{
		{"json get", "GET", "/json", nil, ir.Object{"method": ir.String("GET"), "count": ir.Int(3)}},
		{"json post", "POST", "/json", ir.Object{"a": ir.Int(1)}, ir.Object{"method": ir.String("POST"), "count": ir.Int(3)}},
		{"null body", "POST", "/json", ir.Null{}, ir.Object{"method": ir.String("POST"), "count": ir.Int(3)}},
		{"text", "GET", "/text", nil, ir.String("hello")},
		{"empty", "GET", "/empty", nil, ir.Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Do(ctx, tt.method, srv.URL+tt.path, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPRequester_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	h := NewHTTPRequester(srv.Client())
	ctx := context.Background()

	_, err := h.Do(ctx, "GET", srv.URL, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTeapot, statusErr.StatusCode)

	_, err = h.Do(ctx, "GET", "file:///etc/passwd", nil)
	assert.ErrorContains(t, err, "unsupported scheme")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Do(canceled, "GET", srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanedURLString(t *testing.T) {
	h := NewHTTPRequester(nil)
	assert.Equal(t, DefaultRequestTimeout, h.client.Timeout)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	u := "http://user:secret@" + srv.Listener.Addr().String() + "/path"
	_, err := NewHTTPRequester(srv.Client()).Do(context.Background(), "GET", u, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}
