// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn hands out one queued chunk per Read and accepts at most
// writeChunk bytes per Write.
type fakeConn struct {
	chunks     [][]byte
	readErrs   []error
	written    []byte
	writeChunk int
	writeErr   error
	timeouts   []time.Duration
	reads      int
	closed     bool
}

func (f *fakeConn) Read(p []byte) (int, error) {
	f.reads++
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(f.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, f.chunks[0])
	f.chunks = f.chunks[1:]
	return n, nil
}

func (f *fakeConn) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	n := len(p)
	if f.writeChunk > 0 && n > f.writeChunk {
		n = f.writeChunk
	}
	f.written = append(f.written, p[:n]...)
	return n, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadTimeout(t time.Duration) error {
	f.timeouts = append(f.timeouts, t)
	return nil
}

func TestPort_ReadAheadBuffer(t *testing.T) {
	conn := &fakeConn{chunks: [][]byte{{0x10, 0xFE, 0x00}, {0x02}}}
	p := NewPort(conn, "fake")

	var got []byte
	for i := 0; i < 4; i++ {
		b, err := p.ReadByte(time.Second)
		require.NoError(t, err)
		got = append(got, b)
	}

	assert.Equal(t, []byte{0x10, 0xFE, 0x00, 0x02}, got)
	// Three bytes came from one refill
	assert.Equal(t, 2, conn.reads)
	assert.Equal(t, 0, p.Buffered())
}

func TestPort_ReadTimeout(t *testing.T) {
	conn := &fakeConn{}
	p := NewPort(conn, "fake")

	_, err := p.ReadByte(0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, IsFatal(err))

	_, err = p.ReadByte(-5 * time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []time.Duration{0, Block}, conn.timeouts)
}

func TestPort_ReadErrorIsFatal(t *testing.T) {
	conn := &fakeConn{readErrs: []error{io.EOF}}
	p := NewPort(conn, "fake")

	_, err := p.ReadByte(time.Second)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, io.EOF)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "read", te.Op)
	assert.Equal(t, "fake", te.Name)
}

func TestPort_ReadRetriesInterruptedWait(t *testing.T) {
	conn := &fakeConn{
		readErrs: []error{syscall.EINTR, nil},
		chunks:   [][]byte{{0x42}},
	}
	p := NewPort(conn, "fake")

	b, err := p.ReadByte(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b)
}

func TestPort_WriteLoopsUntilDone(t *testing.T) {
	conn := &fakeConn{writeChunk: 3}
	p := NewPort(conn, "fake")

	data := []byte("0123456789")
	require.NoError(t, p.Write(data))
	assert.Equal(t, data, conn.written)
}

func TestPort_WriteError(t *testing.T) {
	conn := &fakeConn{writeErr: io.ErrClosedPipe}
	p := NewPort(conn, "fake")

	err := p.Write([]byte{1})
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestPort_Close(t *testing.T) {
	conn := &fakeConn{}
	p := NewPort(conn, "fake")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, conn.closed)

	_, err := p.ReadByte(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Write([]byte{1}), ErrClosed)
}

func TestPort_Claim(t *testing.T) {
	p := NewPort(&fakeConn{}, "fake")

	assert.True(t, p.Claim())
	assert.False(t, p.Claim())
	p.Release()
	assert.True(t, p.Claim())
}

func TestPort_DumpAtDebugLevel(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  int
	}{
		{"quiet", 0, 0},
		{"below threshold", DumpLevel - 1, 0},
		{"at threshold", DumpLevel, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dumps []byte
			conn := &fakeConn{chunks: [][]byte{{0x01}}}
			p := NewPort(conn, "fake", WithDebug(tt.level), WithDump(func(dir byte, data []byte) {
				dumps = append(dumps, dir)
			}))

			_, err := p.ReadByte(time.Second)
			require.NoError(t, err)
			require.NoError(t, p.Write([]byte{0x02}))

			assert.Len(t, dumps, tt.want)
			if tt.want > 0 {
				assert.Equal(t, []byte{'<', '>'}, dumps)
			}
			assert.Equal(t, tt.level, p.Debug())
		})
	}
}

func TestFormatDump(t *testing.T) {
	data := []byte("ABCDEFGHIJKLMNOPQ")
	data[1] = 0x10

	lines := FormatDump('>', data)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], " >  41 10 43"))
	assert.Contains(t, lines[0], "A.CDEFGH IJKLMNOP")
	assert.Contains(t, lines[1], "51")
	assert.True(t, strings.HasSuffix(lines[1], "Q"))

	assert.Empty(t, FormatDump('<', nil))
}

func TestWebSocket_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Text frames must be ignored by the client
			conn.WriteMessage(websocket.TextMessage, []byte("noise"))
			conn.WriteMessage(messageType, data)
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	p, err := DialWebSocket(url, "", "", false)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Write([]byte{0x10, 0x03}))

	b, err := p.ReadByte(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), b)
	b, err = p.ReadByte(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), b)

	_, err = p.ReadByte(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWebSocket_BadScheme(t *testing.T) {
	_, err := DialWebSocket("http://example.invalid/", "", "", false)
	assert.ErrorContains(t, err, "unsupported URL scheme")
}
