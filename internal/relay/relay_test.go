package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locker-bank-backend/internal/parse"
)

func newBridge(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewHTTPClient(server.URL, 2*time.Second)
}

func TestHTTPClient_Open(t *testing.T) {
	var gotPath string
	var gotNumber int
	_, client := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req openRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotNumber = req.CompartmentNumber
		w.WriteHeader(http.StatusOK)
	})

	err := client.Open(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, "/api/relay/open", gotPath)
	assert.Equal(t, 3, gotNumber)
}

func TestHTTPClient_OpenBridgeError(t *testing.T) {
	_, client := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "serial error", http.StatusInternalServerError)
	})

	err := client.Open(context.Background(), 3)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreachable, "a responding bridge is not unreachable")
}

func TestHTTPClient_VerifyClosed(t *testing.T) {
	_, client := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/relay/doors/5", r.URL.Path)
		json.NewEncoder(w).Encode(doorResponse{State: "CLOSED"})
	})

	closed, err := client.VerifyClosed(context.Background(), 5)
	assert.NoError(t, err)
	assert.True(t, closed)
}

func TestHTTPClient_VerifyClosedOpenDoor(t *testing.T) {
	_, client := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(doorResponse{State: "OPEN"})
	})

	closed, err := client.VerifyClosed(context.Background(), 5)
	assert.NoError(t, err)
	assert.False(t, closed)
}

func TestHTTPClient_StatusAll(t *testing.T) {
	_, client := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(reportResponse{Report: "1:CLOSED,2:OPEN"})
	})

	states, err := client.StatusAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, map[int]parse.DoorState{1: parse.DoorClosed, 2: parse.DoorOpen}, states)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewHTTPClient(server.URL, 2*time.Second)
	server.Close() // connection refused from here on

	_, err := client.StatusAll(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)

	err = client.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()
	client := NewHTTPClient(server.URL, 20*time.Millisecond)

	err := client.Open(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)
}
