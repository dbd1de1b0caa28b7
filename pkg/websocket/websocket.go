package websocketPkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var ErrNotConfigured = errors.New("ocr service url not configured")

// IWebsocket talks to a plate OCR service that accepts one PNG crop per binary message
// and answers with a JSON object {"texts": [...], "error": "..."}.
type IWebsocket interface {
	Recognize(ctx context.Context, plate image.Image) ([]string, error)
	IsConnected() bool
	Reconnect() error
	CloseConnections()
}

type ocrResponse struct {
	Texts []string `json:"texts"`
	Error string   `json:"error,omitempty"`
}

type webSocketClient struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	sem          *semaphore.Weighted // guards conn
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewOCRWebSocketClient(url string, logger *logrus.Logger) IWebsocket {
	client := &webSocketClient{
		url:          url,
		log:          logger,
		sem:          semaphore.NewWeighted(1),
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go client.connectInBackground()

	return client
}

func (c *webSocketClient) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		c.sem.Release(1)
		return err
	}
	return nil
}

func (c *webSocketClient) unlock() {
	c.sem.Release(1)
}

func (c *webSocketClient) connectInBackground() {
	ctx := context.Background()
	_ = c.lock(ctx)
	defer c.unlock()

	if c.conn != nil {
		return
	}
	if err := c.reconnectLocked(ctx); err != nil {
		c.log.Warnf("Initial connection to OCR service failed: %v. Will retry on demand.", err)
		return
	}
	c.log.Infof("Successfully connected to OCR service at %s", c.url)
}

func (c *webSocketClient) IsConnected() bool {
	_ = c.lock(context.Background())
	defer c.unlock()

	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	ctx := context.Background()
	_ = c.lock(ctx)
	defer c.unlock()

	return c.reconnectLocked(ctx)
}

func (c *webSocketClient) reconnectLocked(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.url == "" {
		return ErrNotConfigured
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketClient) CloseConnections() {
	_ = c.lock(context.Background())
	defer c.unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		_ = c.lock(context.Background())
		if c.conn != conn {
			c.unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping failed for OCR service, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.unlock()
			return
		}

		c.unlock()
	}
}

// Recognize sends the crop and waits for the answer. Exchanges are serialized on the
// single connection; a failed exchange drops the connection so the next call redials.
// A caller whose context ends while waiting for its turn returns without touching the connection.
func (c *webSocketClient) Recognize(ctx context.Context, plate image.Image) ([]string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, plate); err != nil {
		return nil, fmt.Errorf("error encoding plate crop: %w", err)
	}

	if err := c.lock(ctx); err != nil {
		return nil, fmt.Errorf("waiting for OCR connection: %w", err)
	}
	defer c.unlock()

	if c.conn == nil {
		if err := c.reconnectLocked(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect to OCR service: %w", err)
		}
	}
	conn := c.conn

	writeDeadline := time.Now().Add(c.writeTimeout)
	readDeadline := time.Now().Add(c.readTimeout)
	if deadline, ok := ctx.Deadline(); ok {
		if deadline.Before(writeDeadline) {
			writeDeadline = deadline
		}
		if deadline.Before(readDeadline) {
			readDeadline = deadline
		}
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		c.dropLocked(conn)
		return nil, fmt.Errorf("error sending plate crop: %w", err)
	}

	conn.SetReadDeadline(readDeadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropLocked(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("error reading OCR response: %w", ctxErr)
		}
		return nil, fmt.Errorf("error reading OCR response: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result ocrResponse
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling OCR response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("ocr service error: %s", result.Error)
	}

	c.log.Debugf("OCR service returned %d candidates", len(result.Texts))

	return result.Texts, nil
}

func (c *webSocketClient) dropLocked(conn *websocket.Conn) {
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}
