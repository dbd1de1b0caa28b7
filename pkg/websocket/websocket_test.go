package websocketPkg

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOCRServer(t *testing.T, reply func(payload []byte) string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			msg := reply(payload)
			if msg == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRecognizeReturnsTexts(t *testing.T) {
	srv := newOCRServer(t, func(payload []byte) string {
		if len(payload) == 0 {
			return `{"error":"empty"}`
		}
		return `{"texts":["AB-12 CD","AB12"]}`
	})
	defer srv.Close()

	client := NewOCRWebSocketClient(wsURL(srv), quietLogger())
	defer client.CloseConnections()

	texts, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 4)))
	require.NoError(t, err)
	assert.Equal(t, []string{"AB-12 CD", "AB12"}, texts)
	assert.True(t, client.IsConnected())
}

func TestRecognizeSurfacesServiceError(t *testing.T) {
	srv := newOCRServer(t, func([]byte) string { return `{"error":"model not loaded"}` })
	defer srv.Close()

	client := NewOCRWebSocketClient(wsURL(srv), quietLogger())
	defer client.CloseConnections()

	_, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 4)))
	assert.ErrorContains(t, err, "model not loaded")
}

func TestRecognizeHonorsContextDeadline(t *testing.T) {
	srv := newOCRServer(t, func([]byte) string { return "" })
	defer srv.Close()

	client := NewOCRWebSocketClient(wsURL(srv), quietLogger())
	defer client.CloseConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Recognize(ctx, image.NewGray(image.Rect(0, 0, 8, 4)))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRecognizeQueuedCallerGivesUpOnDeadline(t *testing.T) {
	var accepts atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepts.Add(1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			time.Sleep(300 * time.Millisecond)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"texts":["AB12"]}`)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewOCRWebSocketClient(wsURL(srv), quietLogger())
	defer client.CloseConnections()
	require.Eventually(t, client.IsConnected, 2*time.Second, 10*time.Millisecond)

	slow := make(chan error, 1)
	go func() {
		_, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 4)))
		slow <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Recognize(ctx, image.NewGray(image.Rect(0, 0, 8, 4)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	require.NoError(t, <-slow)
	assert.True(t, client.IsConnected())
	assert.Equal(t, int32(1), accepts.Load())
}

func TestRecognizeWithExpiredContext(t *testing.T) {
	client := NewOCRWebSocketClient("ws://127.0.0.1:1", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeWithoutURL(t *testing.T) {
	client := NewOCRWebSocketClient("", quietLogger())

	_, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
