package sim

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(nil)
	require.NoError(t, e.SetOption("sim-tick", "5ms"))
	require.NoError(t, e.Initialize())
	t.Cleanup(e.Destroy)
	return e
}

func waitFor(t *testing.T, e *Engine, id engine.RawEventID) engine.RawEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := e.WaitEvent(50 * time.Millisecond); ev.ID == id {
			return ev
		}
	}
	t.Fatalf("no %v event", id)
	return engine.RawEvent{}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "a.mp4")
	text := filepath.Join(dir, "a.txt")
	empty := filepath.Join(dir, "empty.mkv")
	require.NoError(t, os.WriteFile(video, []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(text, []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		uri  string
		code engine.Code
	}{
		{uri: "file://" + video, code: engine.CodeSuccess},
		{uri: video, code: engine.CodeSuccess},
		{uri: "file://" + filepath.Join(dir, "missing.mp4"), code: engine.CodeLoadingFailed},
		{uri: "file://" + text, code: engine.CodeUnknownFormat},
		{uri: "file://" + empty, code: engine.CodeNothingToPlay},
		{uri: "sim://clip?duration=5s&w=320&h=240", code: engine.CodeSuccess},
		{uri: "sim://clip?duration=bad", code: engine.CodeLoadingFailed},
		{uri: "sim://unsupported", code: engine.CodeUnknownFormat},
		{uri: "https://example.com/a.mp4", code: engine.CodeLoadingFailed},
	}
	for _, test := range tests {
		t.Run(test.uri, func(t *testing.T) {
			_, code := probe(test.uri)
			assert.Equal(t, test.code, code)
		})
	}
}

func TestSynthetic(t *testing.T) {
	m, code := probe("sim://clip?duration=5s&w=320&h=240&fail=2s")
	require.Equal(t, engine.CodeSuccess, code)
	assert.Equal(t, 5*time.Second, m.duration)
	assert.Equal(t, 320, m.width)
	assert.Equal(t, 240, m.height)
	assert.Equal(t, 2*time.Second, m.failAt)
	assert.False(t, m.audio)

	m, _ = probe("sim://radio?w=0")
	assert.True(t, m.audio)
}

func TestPlaybackToEOF(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.ObserveProperty("time-pos"))
	require.NoError(t, e.Command("loadfile", "sim://clip?duration=100ms", "replace"))
	waitFor(t, e, engine.EventFileLoaded)

	d, err := e.GetProperty("duration")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, d, 0.0001)

	require.NoError(t, e.SetProperty("pause", false))
	ev := waitFor(t, e, engine.EventEndFile)
	assert.Equal(t, engine.EndEOF, ev.Reason)

	_, err = e.GetProperty("time-pos")
	assert.ErrorIs(t, err, engine.CodePropertyUnavailable)
	idle, err := e.GetProperty("idle-active")
	require.NoError(t, err)
	assert.Equal(t, true, idle)
}

func TestLoadFailure(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Command("loadfile", "file:///definitely/missing.mp4"))
	ev := waitFor(t, e, engine.EventEndFile)
	assert.Equal(t, engine.EndError, ev.Reason)
	assert.Equal(t, engine.CodeLoadingFailed, ev.Error)
}

func TestInjectedFailure(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Command("loadfile", "sim://clip?duration=10s&fail=20ms"))
	waitFor(t, e, engine.EventFileLoaded)
	require.NoError(t, e.SetProperty("pause", "no"))
	ev := waitFor(t, e, engine.EventEndFile)
	assert.Equal(t, engine.EndError, ev.Reason)
	assert.Equal(t, engine.CodeGeneric, ev.Error)
}

func TestFail(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Command("loadfile", "sim://clip"))
	waitFor(t, e, engine.EventFileLoaded)
	e.Fail(engine.CodeLoadingFailed)
	ev := waitFor(t, e, engine.EventEndFile)
	assert.Equal(t, engine.CodeLoadingFailed, ev.Error)
}

func TestSeekClamps(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.Command("seek", "1", "absolute"), engine.CodeCommand)

	require.NoError(t, e.Command("loadfile", "sim://clip?duration=10s"))
	waitFor(t, e, engine.EventFileLoaded)
	require.NoError(t, e.Command("seek", "42", "absolute"))
	assert.Equal(t, 10*time.Second, e.Position())
	require.NoError(t, e.Command("seek", "-20", "relative"))
	assert.Equal(t, time.Duration(0), e.Position())
	require.NoError(t, e.Command("seek", "50", "absolute-percent"))
	assert.Equal(t, 5*time.Second, e.Position())
	assert.ErrorIs(t, e.Command("seek", "x"), engine.CodeInvalidParameter)
}

func TestProperties(t *testing.T) {
	e := newEngine(t)

	_, err := e.GetProperty("no-such-thing")
	assert.ErrorIs(t, err, engine.CodePropertyNotFound)
	assert.ErrorIs(t, e.SetProperty("no-such-thing", 1), engine.CodePropertyNotFound)
	assert.ErrorIs(t, e.SetProperty("duration", 1), engine.CodePropertyUnavailable)
	assert.ErrorIs(t, e.SetProperty("volume", "loud"), engine.CodePropertyFormat)
	assert.ErrorIs(t, e.SetProperty("volume", 500), engine.CodeInvalidParameter)

	require.NoError(t, e.SetProperty("volume", 42))
	v, err := e.GetProperty("volume")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
}

func TestOptions(t *testing.T) {
	e := New(nil)
	defer e.Destroy()
	assert.NoError(t, e.SetOption("hwdec", "auto-safe"))
	assert.NoError(t, e.SetOption("vo", "libmpv"))
	assert.ErrorIs(t, e.SetOption("bogus", "1"), engine.CodeOptionNotFound)
	assert.ErrorIs(t, e.SetOption("volume", "x"), engine.CodeOptionFormat)
	assert.ErrorIs(t, e.Command("stop"), engine.CodeUninitialized)
}

func TestLogMessages(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RequestLogMessages("info"))
	require.NoError(t, e.Command("loadfile", "sim://clip"))
	ev := waitFor(t, e, engine.EventLogMessage)
	assert.Equal(t, "info", ev.Level)
	assert.Equal(t, "Playing: sim://clip\n", ev.Text)

	assert.ErrorIs(t, e.RequestLogMessages("loud"), engine.CodeInvalidParameter)
}

func TestWakeup(t *testing.T) {
	e := newEngine(t)
	go e.Wakeup()
	ev := e.WaitEvent(-1)
	assert.Equal(t, engine.EventNone, ev.ID)
}

func TestRender(t *testing.T) {
	e := newEngine(t)
	_, err := e.NewRenderContext(engine.RenderParams{API: "vulkan"})
	assert.ErrorIs(t, err, engine.CodeUnsupported)

	rc, err := e.NewRenderContext(engine.RenderParams{API: "sw"})
	require.NoError(t, err)
	_, err = e.NewRenderContext(engine.RenderParams{API: "sw"})
	assert.ErrorIs(t, err, engine.CodeInvalidParameter)

	updates := make(chan struct{}, 16)
	rc.SetUpdateCallback(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	require.NoError(t, rc.Render(engine.Target{W: 64, H: 36, Image: img}))
	assert.Equal(t, uint8(0), img.RGBAAt(1, 1).R, "idle frame is black")

	require.NoError(t, e.Command("loadfile", "sim://clip?duration=1m"))
	waitFor(t, e, engine.EventFileLoaded)
	require.NoError(t, e.SetProperty("pause", false))
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame update")
	}
	require.NoError(t, rc.Render(engine.Target{W: 64, H: 36, Image: img}))
	assert.NotEqual(t, uint8(0), img.RGBAAt(1, 1).R, "first bar is grey")
	rc.ReportSwap()
	assert.Equal(t, uint64(1), rc.(*renderContext).Swaps())

	assert.ErrorIs(t, rc.Render(engine.Target{W: 64, H: 36}), engine.CodeUnsupported)

	rc.Free()
	_, err = e.NewRenderContext(engine.RenderParams{API: "opengl"})
	assert.NoError(t, err)
}

func TestFlip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.Pix[0] = 1
	img.Pix[4] = 2
	flip(img, img.Bounds())
	assert.Equal(t, uint8(2), img.Pix[0])
	assert.Equal(t, uint8(1), img.Pix[4])
}
