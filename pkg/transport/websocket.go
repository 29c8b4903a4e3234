// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// webSocketConn carries the serial byte stream over binary websocket
// messages, for units attached to a network serial bridge.
//
// gorilla/websocket connections are unusable after a read deadline fires,
// so a reader goroutine owns ReadMessage and Read waits on its channel.
type webSocketConn struct {
	conn    *websocket.Conn
	msgs    chan []byte
	done    chan struct{}
	once    sync.Once
	err     error // set by readLoop before msgs is closed
	pending []byte
	timeout time.Duration
}

func newWebSocketConn(conn *websocket.Conn) *webSocketConn {
	w := &webSocketConn{
		conn:    conn,
		msgs:    make(chan []byte, 16),
		done:    make(chan struct{}),
		timeout: Block,
	}
	go w.readLoop()
	return w
}

func (w *webSocketConn) readLoop() {
	defer close(w.msgs)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.err = err
			return
		}
		// Only binary messages carry link bytes
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

func (w *webSocketConn) SetReadTimeout(t time.Duration) error {
	w.timeout = t
	return nil
}

func (w *webSocketConn) Read(p []byte) (int, error) {
	if len(w.pending) > 0 {
		n := copy(p, w.pending)
		w.pending = w.pending[n:]
		return n, nil
	}

	var data []byte
	var ok bool
	switch {
	case w.timeout == 0:
		select {
		case data, ok = <-w.msgs:
		default:
			return 0, nil
		}
	case w.timeout < 0:
		data, ok = <-w.msgs
	default:
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		select {
		case data, ok = <-w.msgs:
		case <-timer.C:
			return 0, nil
		}
	}

	if !ok {
		if w.err != nil {
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
		}
		return 0, ErrConnectionClosed
	}
	n := copy(p, data)
	w.pending = data[n:]
	return n, nil
}

func (w *webSocketConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *webSocketConn) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.conn.Close()
}

// DialWebSocket connects to a serial bridge with optional HTTP Basic auth
// and wraps the connection in a Port.
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool, opts ...Option) (*Port, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return NewPort(newWebSocketConn(conn), wsURL, opts...), nil
}
