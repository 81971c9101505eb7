package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	transporthttp "github.com/gabapcia/ledgerwatch/internal/pkg/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	newService := func(endpoint string) Service {
		client := transporthttp.NewClient(
			transporthttp.WithTimeout(time.Second),
			transporthttp.WithRetryMax(0),
		)
		return New(client, endpoint)
	}

	t.Run("all subsystems up, wrapped response shape", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"subsystems": {"indexer": true, "rpc": true}}`))
		}))
		defer server.Close()

		status := newService(server.URL).Check(t.Context())

		assert.True(t, status.Online)
		assert.Equal(t, map[string]bool{"indexer": true, "rpc": true}, status.Subsystems)
		assert.Positive(t, status.Latency)
		assert.False(t, status.CheckedAt.IsZero())
	})

	t.Run("flat response shape", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"indexer": true, "rpc": true}`))
		}))
		defer server.Close()

		status := newService(server.URL).Check(t.Context())

		assert.True(t, status.Online)
		assert.Equal(t, map[string]bool{"indexer": true, "rpc": true}, status.Subsystems)
	})

	t.Run("one subsystem down marks the whole probe offline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"subsystems": {"indexer": false, "rpc": true}}`))
		}))
		defer server.Close()

		status := newService(server.URL).Check(t.Context())

		assert.False(t, status.Online)
		require.Contains(t, status.Subsystems, "indexer")
		assert.False(t, status.Subsystems["indexer"])
	})

	t.Run("non-OK status degrades to offline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		status := newService(server.URL).Check(t.Context())

		assert.False(t, status.Online)
		assert.Empty(t, status.Subsystems)
	})

	t.Run("unreachable endpoint degrades to offline instead of failing", func(t *testing.T) {
		status := newService("http://127.0.0.1:1/status").Check(t.Context())

		assert.False(t, status.Online)
		assert.False(t, status.CheckedAt.IsZero())
	})

	t.Run("undecodable body degrades to offline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer server.Close()

		status := newService(server.URL).Check(t.Context())

		assert.False(t, status.Online)
	})
}
