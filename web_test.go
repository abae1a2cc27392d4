/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	errs := make(chan error, 64)
	srv := httptest.NewServer(newRouter(testConfig(), testRounds(), errs))
	t.Cleanup(srv.Close)

	return srv
}

func TestStaticRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/healthz", "text/plain", "Ok"},
		{"/version", "text/plain", "feudbox v" + releaseVersion},
		{"/robots.txt", "text/plain", "Disallow"},
		{"/", "text/html", "New game"},
		{"/assets/feud/app.js", "text/javascript", "WebSocket"},
		{"/assets/feud/app.css", "text/css", "board"},
		{"/favicons/favicon.svg", "image/svg+xml", "<svg"},
		{"/feud/abcdefgh", "text/html", "app.js"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType)
			assert.Contains(t, string(body), tt.contains)
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		})
	}

	t.Run("missing asset", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/assets/feud/missing.js")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestNewGameRedirect(t *testing.T) {
	srv := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(srv.URL + "/feud")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/feud/"), location)
	assert.Len(t, strings.TrimPrefix(location, "/feud/"), 8)
}

func TestQRCode(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/feud/abcdefgh/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))

		if msg["type"] == msgType {
			return msg
		}
	}
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 2 * time.Second}

	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestWebsocketGame(t *testing.T) {
	srv := newTestServer(t)

	mod := dial(t, srv, "/feud/wsgame01/ws")
	info := readUntil(t, mod, "session_info")
	assert.Equal(t, true, info["is_moderator"])

	display := dial(t, srv, "/feud/wsgame01/ws")
	info = readUntil(t, display, "session_info")
	assert.Equal(t, false, info["is_moderator"])

	require.NoError(t, mod.WriteJSON(ClientMessage{Type: "face_off", Team: "b"}))

	msg := readUntil(t, display, "game_state")
	for msg["state"].(map[string]any)["phase"] != "decision" {
		msg = readUntil(t, display, "game_state")
	}

	state := msg["state"].(map[string]any)
	assert.Equal(t, "team_b", state["face_off_winner"])

	require.NoError(t, display.WriteJSON(ClientMessage{Type: "strike"}))
	rejected := readUntil(t, display, "rejected")
	assert.Equal(t, errNotModerator.Error(), rejected["message"])
}
