package bseries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	updates      chan *DeviceUpdate
	connected    chan struct{}
	disconnected chan error
	refresh      chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		updates:      make(chan *DeviceUpdate, 16),
		connected:    make(chan struct{}, 16),
		disconnected: make(chan error, 16),
		refresh:      make(chan struct{}, 16),
	}
}

func (h *recordingHandler) OnDeviceUpdate(u *DeviceUpdate) { h.updates <- u }
func (h *recordingHandler) OnStreamConnected()             { h.connected <- struct{}{} }
func (h *recordingHandler) OnStreamDisconnected(err error) { h.disconnected <- err }
func (h *recordingHandler) OnTokenRefreshNeeded()          { h.refresh <- struct{}{} }

// fakeCloudWS runs a minimal socket.io endpoint for one test. Each accepted
// connection performs the handshake and login/subscribe exchange, then hands
// control to serve.
func fakeCloudWS(t *testing.T, serve func(conn *websocket.Conn, login, subscribe string)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/socket.io/", r.URL.Path)
		require.Equal(t, "4", r.URL.Query().Get("EIO"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`0{"sid":"test","pingInterval":25000,"pingTimeout":20000}`)))
		_, login, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`40/devices,{"sid":"ns"}`)))
		_, subscribe, err := conn.ReadMessage()
		require.NoError(t, err)

		serve(conn, string(login), string(subscribe))
	}))
}

func TestStreamSessionAndEvents(t *testing.T) {
	srv := fakeCloudWS(t, func(conn *websocket.Conn, login, subscribe string) {
		assert.Equal(t, `40/devices,{"accessToken":"tok123"}`, login)
		assert.Equal(t, `42/devices,["subscribe",["AB12CD34"]]`, subscribe)

		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`42/devices,["event",{"serial_number":"AB12CD34","online":true,`+
				`"readings":[{"id":1,"sensor":1,"type":"TEMPERATURE","reading":20.5}]}]`))

		// keepalive round-trip
		_ = conn.WriteMessage(websocket.TextMessage, []byte(framePing))
		_, pong, err := conn.ReadMessage()
		if assert.NoError(t, err) {
			assert.Equal(t, framePong, string(pong))
		}
	})
	defer srv.Close()

	handler := newRecordingHandler()
	stream := NewStream(StreamConfig{
		BaseURL: srv.URL,
		Token:   "tok123",
		Serials: []string{"AB12CD34"},
	}, handler)
	stream.Start(context.Background())
	defer stream.Stop()

	select {
	case <-handler.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never connected")
	}

	select {
	case upd := <-handler.updates:
		assert.Equal(t, "AB12CD34", upd.SerialNumber)
		require.NotNil(t, upd.Temperature)
		assert.Equal(t, 20.5, *upd.Temperature)
	case <-time.After(5 * time.Second):
		t.Fatal("no device update received")
	}
}

func TestStreamForbiddenExceptionAsksForRefresh(t *testing.T) {
	srv := fakeCloudWS(t, func(conn *websocket.Conn, login, subscribe string) {
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`42/devices,["exception",{"status":"error","message":"Forbidden resource"}]`))
	})
	defer srv.Close()

	handler := newRecordingHandler()
	stream := NewStream(StreamConfig{
		BaseURL: srv.URL,
		Token:   "stale",
		Serials: []string{"AB12CD34"},
	}, handler)
	stream.Start(context.Background())
	defer stream.Stop()

	select {
	case <-handler.refresh:
	case <-time.After(5 * time.Second):
		t.Fatal("token refresh never requested")
	}
	select {
	case <-handler.disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never reported disconnect")
	}
}

func TestStreamConcurrentScansAndPongs(t *testing.T) {
	const pings = 100
	const scans = 50

	type serverCounts struct {
		pongs int
		scans int
		err   error
	}
	counts := make(chan serverCounts, 1)

	srv := fakeCloudWS(t, func(conn *websocket.Conn, login, subscribe string) {
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for i := 0; i < pings; i++ {
				if conn.WriteMessage(websocket.TextMessage, []byte(framePing)) != nil {
					return
				}
			}
		}()

		var got serverCounts
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		for got.pongs < pings || got.scans < scans {
			_, data, err := conn.ReadMessage()
			if err != nil {
				got.err = err
				break
			}
			if string(data) == framePong {
				got.pongs++
			} else {
				got.scans++
			}
		}
		<-writerDone
		counts <- got
	})
	defer srv.Close()

	handler := newRecordingHandler()
	stream := NewStream(StreamConfig{
		BaseURL: srv.URL,
		Token:   "tok123",
		Serials: []string{"AB12CD34"},
	}, handler)
	stream.Start(context.Background())
	defer stream.Stop()

	select {
	case <-handler.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never connected")
	}

	// scan requests race against the pong replies on the reader goroutine
	for i := 0; i < scans; i++ {
		go stream.RequestScan("AB12CD34")
	}

	select {
	case got := <-counts:
		require.NoError(t, got.err)
		assert.Equal(t, pings, got.pongs)
		assert.Equal(t, scans, got.scans)
	case <-time.After(15 * time.Second):
		t.Fatal("server never received all frames")
	}
}

func TestBackoffDelayGrowthAndCap(t *testing.T) {
	initial := 10 * time.Second
	max := 600 * time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		base := initial
		for i := 1; i < attempt && base < max; i++ {
			base *= 2
		}
		lo := time.Duration(float64(base) * 0.8)
		if lo > max {
			lo = max
		}
		d := backoffDelay(initial, max, attempt)
		assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
		assert.LessOrEqual(t, d, max, "attempt %d", attempt)
	}
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t,
		"wss://api.computhermbseries.com/socket.io/?EIO=4&transport=websocket",
		websocketURL("https://api.computhermbseries.com"))
	assert.Equal(t,
		"ws://127.0.0.1:8123/socket.io/?EIO=4&transport=websocket",
		websocketURL("http://127.0.0.1:8123/"))
}
