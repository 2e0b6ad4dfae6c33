package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineroot/lanshare/pkg/peer"
)

type manifest map[string]int64

func (m manifest) Manifest() map[string]int64 {
	return m
}

func TestRouter_Peers(t *testing.T) {
	r := peer.NewRegistry(0)
	r.Upsert(peer.Info{Address: "10.0.0.2", Port: 12000, Files: map[string]int64{"b.bin": 2, "a.txt": 11}})
	r.Upsert(peer.Info{Address: "10.0.0.1", Port: 12000})
	router := NewRouter(r, manifest{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/peers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var peers []Peer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &peers))
	assert.Equal(t, []Peer{
		{Address: "10.0.0.1", Port: 12000, Files: []File{}},
		{Address: "10.0.0.2", Port: 12000, Files: []File{{Name: "a.txt", Size: 11}, {Name: "b.bin", Size: 2}}},
	}, peers)
}

func TestRouter_Files(t *testing.T) {
	router := NewRouter(peer.NewRegistry(0), manifest{"z": 1, "a.txt": 11})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"a.txt","size":11},{"name":"z","size":1}]`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/files", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Run(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	s := NewServer(addr, NewRouter(peer.NewRegistry(0), manifest{"a.txt": 11}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/files")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("api server did not stop")
	}
}
