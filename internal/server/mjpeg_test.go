package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iocgo/internal/port"
)

// Every part begins with the boundary line and declares a
// Content-Length equal to the payload's length; empty frames are skipped.
func TestMJPEGStreamFormat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState(ctx, nil,
		[]OutputSpec{{Name: "cam", Kind: port.KindBinary, Initial: port.BinaryValue(nil)}})
	cfg := Config{MJPEG: []MJPEGConfig{{Path: "/stream", Output: "cam"}}}
	mux, err := newMux(ctx, cfg, state)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")
	assert.Contains(t, resp.Header.Get("Content-Type"), mjpegBoundary)

	// The initial frame is empty, so nothing is emitted until a real
	// frame (then an empty one, which must be skipped, then another).
	go func() {
		time.Sleep(50 * time.Millisecond)
		out := state.outputs["cam"].AsOutputKind()
		out.Send(port.BinaryValue(frame))
		time.Sleep(20 * time.Millisecond)
		out.Send(port.BinaryValue(nil))
		time.Sleep(20 * time.Millisecond)
		out.Send(port.BinaryValue(frame))
	}()

	reader := bufio.NewReader(resp.Body)
	for i := 0; i < 2; i++ {
		header := fmt.Sprintf("\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			mjpegBoundary, len(frame))
		got := make([]byte, len(header)+len(frame))
		_, err = io.ReadFull(reader, got)
		require.NoError(t, err, "part %d", i)
		assert.Equal(t, header, string(got[:len(header)]), "part %d header", i)
		assert.True(t, bytes.Equal(frame, got[len(header):]), "part %d payload", i)
	}
}

func TestMJPEGUnknownOutputFailsBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState(ctx, nil, nil)
	cfg := Config{MJPEG: []MJPEGConfig{{Path: "/stream", Output: "nope"}}}
	_, err := newMux(ctx, cfg, state)
	assert.Error(t, err)
}
