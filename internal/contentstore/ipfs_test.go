package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"alcyxob/coursevault/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode mimics the subset of the IPFS HTTP RPC the store uses.
func fakeNode(t *testing.T, content string) (*httptest.Server, *http.Header) {
	t.Helper()
	var lastHeader http.Header

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Version":"0.24.0","Commit":"test"}`)
	})
	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header.Clone()
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{"Name":"file","Hash":"QmTestCid","Size":"11"}`)
	})
	mux.HandleFunc("/api/v0/pin/add", func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header.Clone()
		fmt.Fprint(w, `{"Pins":["QmTestCid"]}`)
	})
	mux.HandleFunc("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header.Clone()
		fmt.Fprint(w, content)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastHeader
}

func TestIPFSStoreAddReportsCidAndSize(t *testing.T) {
	srv, _ := fakeNode(t, "")
	store := NewIPFSStore(config.IPFSConfig{APIURL: srv.URL, PinOnWrite: true})

	cid, size, err := store.Add(context.Background(), strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "QmTestCid", cid)
	assert.Equal(t, int64(len("hello world")), size)
}

func TestIPFSStorePin(t *testing.T) {
	srv, _ := fakeNode(t, "")
	store := NewIPFSStore(config.IPFSConfig{APIURL: srv.URL})

	require.NoError(t, store.Pin(context.Background(), "QmTestCid"))
}

func TestIPFSStoreCatReturnsContent(t *testing.T) {
	srv, _ := fakeNode(t, "hello world")
	store := NewIPFSStore(config.IPFSConfig{APIURL: srv.URL})

	rc, err := store.Cat(context.Background(), "QmTestCid")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestIPFSStoreSendsProjectCredentials(t *testing.T) {
	srv, lastHeader := fakeNode(t, "")
	store := NewIPFSStore(config.IPFSConfig{
		APIURL:        srv.URL,
		ProjectID:     "project-id",
		ProjectSecret: "project-secret",
	})

	_, _, err := store.Add(context.Background(), strings.NewReader("auth me"))
	require.NoError(t, err)

	auth := lastHeader.Get("Authorization")
	require.NotEmpty(t, auth)
	assert.True(t, strings.HasPrefix(auth, "Basic "), "credentials must go out as HTTP Basic auth")
}

func TestIPFSStoreUnreachableNodeIsTransient(t *testing.T) {
	srv, _ := fakeNode(t, "")
	url := srv.URL
	srv.Close()

	store := NewIPFSStore(config.IPFSConfig{APIURL: url})
	_, _, err := store.Add(context.Background(), strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, IsTransient(err), "a refused connection is retryable")
}

func TestIPFSStoreCancelledContext(t *testing.T) {
	srv, _ := fakeNode(t, "")
	store := NewIPFSStore(config.IPFSConfig{APIURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Add(ctx, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&StoreError{Op: "add", Transient: true, Err: errors.New("boom")}))
	assert.False(t, IsTransient(&StoreError{Op: "pin", Transient: false, Err: errors.New("bad cid")}))
	assert.False(t, IsTransient(errors.New("unrelated")))

	wrapped := fmt.Errorf("upload failed: %w", &StoreError{Op: "add", Transient: true, Err: errors.New("timeout")})
	assert.True(t, IsTransient(wrapped))
}
