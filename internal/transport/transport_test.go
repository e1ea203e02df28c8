// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "beamform/internal/log"
	"beamform/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testFrame() *MapFrame {
	return &MapFrame{
		Variant:     "direct/classic/full",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Frequencies: []float64{500, 1000},
		XMin:        -1,
		YMin:        -0.5,
		Increment:   0.5,
		NumX:        3,
		NumY:        2,
		Power: [][]float64{
			{0, 1, 2, 9, 4, 5},
			{7, 1, 2, 3, 4, 5},
		},
	}
}

func TestMapFramePosition(t *testing.T) {
	f := testFrame()
	require.Equal(t, 6, f.NumGrid())

	x, y := f.Position(0)
	require.Equal(t, [2]float64{-1, -0.5}, [2]float64{x, y})
	x, y = f.Position(3) // x-major: i=1, j=1
	require.Equal(t, [2]float64{-0.5, 0}, [2]float64{x, y})
	x, y = f.Position(5)
	require.Equal(t, [2]float64{0, 0}, [2]float64{x, y})
}

func TestFrameStore(t *testing.T) {
	var s FrameStore
	require.Nil(t, s.Latest())

	a, b := testFrame(), testFrame()
	require.NoError(t, s.Send(a))
	require.Same(t, a, s.Latest())
	require.NoError(t, s.Send(b))
	require.Same(t, b, s.Latest())
	require.NoError(t, s.Close())
}

type failingTransport struct{ err error }

func (f failingTransport) Send(*MapFrame) error { return f.err }
func (f failingTransport) Close() error         { return f.err }

func TestFanout(t *testing.T) {
	first := &utils.MockTransport[*MapFrame]{}
	second := &utils.MockTransport[*MapFrame]{}
	errSend := errors.New("send failed")

	fan := Fanout{first, failingTransport{errSend}, second}
	frame := testFrame()

	err := fan.Send(frame)
	require.ErrorIs(t, err, errSend)
	require.Equal(t, []*MapFrame{frame}, first.Sent())
	require.Equal(t, []*MapFrame{frame}, second.Sent())

	require.ErrorIs(t, fan.Close(), errSend)
	require.True(t, first.Closed())
	require.True(t, second.Closed())

	require.NoError(t, Fanout{first}.Send(frame))
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	prev := applog.SetOutput(&buf)
	defer applog.SetOutput(prev)
	level := applog.GetLevel()
	applog.SetLevel(applog.LevelInfo)
	defer applog.SetLevel(level)

	lt := NewLoggingTransport()
	frame := testFrame()
	frame.Power = append(frame.Power, nil) // empty row is skipped
	require.NoError(t, lt.Send(frame))
	require.NoError(t, lt.Close())

	out := buf.String()
	require.Contains(t, out, "transport: direct/classic/full 500.0 Hz: peak 9 at (-0.500, 0.000)")
	require.Contains(t, out, "transport: direct/classic/full 1000.0 Hz: peak 7 at (-1.000, -0.500)")
	require.Equal(t, 2, strings.Count(out, "peak"))
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := newWebSocketTransport()
	srv := httptest.NewServer(wst)
	defer srv.Close()
	defer wst.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wst.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	want := testFrame()
	require.NoError(t, wst.Send(want))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got MapFrame
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, want.Variant, got.Variant)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
	require.Equal(t, want.Frequencies, got.Frequencies)
	require.Equal(t, want.Power, got.Power)
	require.Equal(t, want.NumX, got.NumX)
	require.Equal(t, want.Increment, got.Increment)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := newWebSocketTransport()
	srv := httptest.NewServer(wst)
	defer srv.Close()
	defer wst.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return wst.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketClose(t *testing.T) {
	wst := newWebSocketTransport()
	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close())
	require.Equal(t, 0, wst.Clients())

	// Sending after Close never blocks.
	for range 32 {
		require.NoError(t, wst.Send(testFrame()))
	}
}
