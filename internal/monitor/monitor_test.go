package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	status   node.Status
	peers    []node.Peer
	handlers []node.Descriptor
}

func (f fakeSource) Status() node.Status         { return f.status }
func (f fakeSource) Peers() []node.Peer          { return f.peers }
func (f fakeSource) Handlers() []node.Descriptor { return f.handlers }

func newTestServer(t *testing.T, src Source) (*Server, *httptest.Server) {
	t.Helper()
	s := New(logger.Discard(), Conf{CORSOrigins: []string{"http://console.local"}}, src, NewHub(logger.Discard()))
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.hub.Close()
		ts.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, fakeSource{status: node.Status{State: "running"}})

	var body map[string]interface{}
	resp := getJSON(t, ts.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "running", body["node"])
}

func TestStatus(t *testing.T) {
	src := fakeSource{status: node.Status{ID: "abc", State: "running", Network: 1, SubNet: 2, Universe: 3, DMXFrames: 7}}
	_, ts := newTestServer(t, src)

	var got node.Status
	getJSON(t, ts.URL+"/api/status", &got)
	assert.Equal(t, src.status, got)
}

func TestPeers(t *testing.T) {
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := fakeSource{peers: []node.Peer{
		{Name: "desk", Address: net.IPv4(10, 0, 0, 2).To4(), FirstSeen: seen, LastSeen: seen},
	}}
	_, ts := newTestServer(t, src)

	var got []map[string]interface{}
	getJSON(t, ts.URL+"/api/peers", &got)
	require.Len(t, got, 1)
	assert.Equal(t, "desk", got[0]["name"])
	assert.Equal(t, "10.0.0.2", got[0]["address"])
}

func TestEmptyLists(t *testing.T) {
	_, ts := newTestServer(t, fakeSource{})

	for _, path := range []string{"/api/peers", "/api/handlers"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(body), path)
	}
}

func TestHandlers(t *testing.T) {
	src := fakeSource{handlers: []node.Descriptor{{Name: "relays", Universe: 1, Address: 1, Width: 8}}}
	_, ts := newTestServer(t, src)

	var got []node.Descriptor
	getJSON(t, ts.URL+"/api/handlers", &got)
	assert.Equal(t, src.handlers, got)
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t, fakeSource{})

	for origin, want := range map[string]string{
		"http://console.local":  "http://console.local",
		"http://localhost:3000": "http://localhost:3000",
		"http://evil.example":   "",
	} {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t, fakeSource{})
	resp, err := http.Get(ts.URL + "/api/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketEvents(t *testing.T) {
	s, ts := newTestServer(t, fakeSource{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.hub.Publish(node.Event{Type: node.EventDMXTimeout, Node: "n1", Time: at})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got node.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, node.Event{Type: node.EventDMXTimeout, Node: "n1", Time: at}, got)

	s.hub.Close()
	assert.Equal(t, 0, s.hub.Len())
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebsocketClientLeaves(t *testing.T) {
	s, ts := newTestServer(t, fakeSource{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 0 }, time.Second, 5*time.Millisecond)

	s.hub.Publish(node.Event{Type: node.EventStarted})
}

func TestServer_StartStop(t *testing.T) {
	s := New(logger.Discard(), Conf{Listen: "127.0.0.1:0"}, fakeSource{}, NewHub(logger.Discard()))
	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := New(logger.Discard(), Conf{}, fakeSource{}, NewHub(logger.Discard()))
	assert.NoError(t, s.Stop(context.Background()))
}
