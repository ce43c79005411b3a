package visualization

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err, "GET %s", path)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_ServesIndex(t *testing.T) {
	srv := httptest.NewServer(NewServer(testPopulation(t)).Handler())
	defer srv.Close()

	resp := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "4 agents, 2 relationships, 2 components.")

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/nope").StatusCode)
}

func TestServer_GraphJSON(t *testing.T) {
	srv := httptest.NewServer(NewServer(testPopulation(t)).Handler())
	defer srv.Close()

	resp := get(t, srv, "/graph.json?component=0&centrality=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var g JSONGraph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Equal(t, 3, g.NodeCount)
	assert.Equal(t, 2, g.EdgeCount)
	for _, n := range g.Nodes {
		assert.NotNil(t, n.Centrality, "node %d has no centrality", n.ID)
	}
}

func TestServer_GraphDOT(t *testing.T) {
	srv := httptest.NewServer(NewServer(testPopulation(t)).Handler())
	defer srv.Close()

	body, err := io.ReadAll(get(t, srv, "/graph.dot").Body)
	require.NoError(t, err)
	assert.Regexp(t, `^graph titan \{`, string(body))
}

func TestServer_AgentEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(testPopulation(t)).Handler())
	defer srv.Close()

	resp := get(t, srv, "/api/agent?id=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view AgentView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, int64(2), view.ID)
	assert.True(t, view.PrEP)
	require.Len(t, view.Partners, 2)
	for _, p := range view.Partners {
		assert.Equal(t, int64(2), p.Source)
		assert.Contains(t, []int64{1, 3}, p.Target)
	}
}

func TestServer_AgentEndpoint_Errors(t *testing.T) {
	srv := httptest.NewServer(NewServer(testPopulation(t)).Handler())
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/api/agent", http.StatusBadRequest},
		{"/api/agent?id=x", http.StatusBadRequest},
		{"/api/agent?id=99", http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, get(t, srv, tt.path).StatusCode, tt.path)
	}
}

func TestServer_CleanShutdown(t *testing.T) {
	srv := NewServer(testPopulation(t))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "localhost:0") }()

	waitForServer(t, srv, 2*time.Second)

	// Cancel context to trigger shutdown
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "shutdown")
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down within 3 seconds")
	}
}

// waitForServer polls the server until it's ready or the timeout is reached.
func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		addr := srv.Addr()
		if addr == "" {
			return false
		}
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, timeout, 10*time.Millisecond, "server did not start within timeout")
}
