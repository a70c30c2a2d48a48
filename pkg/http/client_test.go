package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(`{"price":1.5}`))
		case "/raw":
			_, _ = w.Write([]byte("0123456789"))
		default:
			http.Error(w, "nope", http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("test-agent"), WithMaxBodySize(4))
	ctx := context.Background()

	var got struct {
		Price float64 `json:"price"`
	}
	c2 := NewClient(WithUserAgent("test-agent"))
	require.NoError(t, c2.SendAndParse(ctx, &RequestOptions{URL: srv.URL + "/json", Query: map[string]string{"symbol": "AAPL"}}, &got))
	assert.Equal(t, 1.5, got.Price)

	var raw []byte
	require.NoError(t, c.SendAndParse(ctx, &RequestOptions{URL: srv.URL + "/raw"}, &raw))
	assert.Equal(t, "0123", string(raw))

	err := c2.SendAndParse(ctx, &RequestOptions{URL: srv.URL + "/missing"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTeapot, se.Code)
	assert.Equal(t, "nope", se.Body)

	assert.Error(t, c.SendAndParse(ctx, &RequestOptions{}, nil))
}
