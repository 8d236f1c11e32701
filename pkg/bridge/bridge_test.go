package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/engine/sim"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStuck = errors.New("stuck")

// stuckEngine fails to stop and remembers being destroyed.
type stuckEngine struct {
	*sim.Engine
	destroyed chan struct{}
}

func (s *stuckEngine) Command(args ...string) error {
	if len(args) > 0 && args[0] == "stop" {
		return errStuck
	}
	return s.Engine.Command(args...)
}

func (s *stuckEngine) Destroy() {
	s.Engine.Destroy()
	close(s.destroyed)
}

var stuck = make(chan *stuckEngine, 1)

func init() {
	engine.Register("sim-stuck", func(log *logger.Logger) (engine.Native, error) {
		e := &stuckEngine{Engine: sim.New(log), destroyed: make(chan struct{})}
		stuck <- e
		return e, nil
	})
}

func engineConf() config.Engine {
	return config.Engine{
		Native:        "sim",
		LogLevel:      "warn",
		RenderBackend: config.RenderSW,
		OpenTimeout:   2 * time.Second,
		Options:       map[string]string{"sim-tick": "5ms"},
	}
}

func newBridge(t *testing.T) *Bridge {
	t.Helper()
	b := New(config.Relay{Capacity: 256, Policy: config.PolicyDropOldest}, nil, logger.Nop())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newInstance(t *testing.T, b *Bridge, conf config.Engine) *Instance {
	t.Helper()
	inst, err := b.Create(conf)
	require.NoError(t, err)
	return inst
}

func mediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0o644))
	return "file://" + path
}

// significant drops the events the pump relays on its own.
func significant(events []event.Event) []event.Event {
	var out []event.Event
	for _, e := range events {
		if e.Kind == event.LogMessage || e.Kind == event.VideoReconfig ||
			(e.Kind == event.PropertyChanged && e.Name != "pause") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func kinds(events []event.Event) []event.Kind {
	out := make([]event.Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

// pollUntil polls until an event of kind shows up and returns everything polled.
func pollUntil(t *testing.T, b *Bridge, kind event.Kind) []event.Event {
	t.Helper()
	var all []event.Event
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		events, err := b.Poll()
		require.NoError(t, err)
		all = append(all, events...)
		for _, e := range events {
			if e.Kind == kind {
				return all
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no %v event in %v", kind, all)
	return nil
}

func TestNoInstance(t *testing.T) {
	b := newBridge(t)
	assert.ErrorIs(t, b.Submit(Play{}), ErrNoInstance)
	assert.ErrorIs(t, <-b.SubmitAsync(Play{}), ErrNoInstance)
	_, err := b.Poll()
	assert.ErrorIs(t, err, ErrNoInstance)
	_, err = b.Subscribe(func(event.Event) {})
	assert.ErrorIs(t, err, ErrNoInstance)
	assert.ErrorIs(t, b.Bind(surface.NewImage(8, 8)), ErrNoInstance)
	assert.ErrorIs(t, b.Teardown(), ErrNoInstance)
	_, err = b.Property("volume")
	assert.ErrorIs(t, err, ErrNoInstance)
}

func TestCreate(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", inst.ID.String())
	assert.Equal(t, engine.Uninitialized, inst.State())

	_, err := b.Create(engineConf())
	assert.ErrorIs(t, err, ErrInstanceExists)

	require.NoError(t, b.Teardown())
	second := newInstance(t, b, engineConf())
	assert.NotEqual(t, inst.ID, second.ID)
}

func TestCreateFailures(t *testing.T) {
	b := newBridge(t)

	conf := engineConf()
	conf.Native = "quicktime"
	_, err := b.Create(conf)
	assert.Error(t, err)

	conf = engineConf()
	conf.RenderBackend = "metal"
	_, err = b.Create(conf)
	assert.Error(t, err)

	conf = engineConf()
	conf.Options = map[string]string{"no-such-option": "1"}
	_, err = b.Create(conf)
	assert.ErrorIs(t, err, engine.ErrEngineInternal)

	_, err = b.Instance()
	assert.ErrorIs(t, err, ErrNoInstance)
}

func TestOpenPlayPoll(t *testing.T) {
	b := newBridge(t)
	conf := engineConf()
	conf.HwAccel = true
	newInstance(t, b, conf)

	require.NoError(t, b.Submit(Open{URI: mediaFile(t, "a.mp4")}))
	require.NoError(t, b.Submit(Play{}))

	events, err := b.Poll()
	require.NoError(t, err)
	var paused *event.Event
	for _, e := range events {
		if e.Kind == event.PropertyChanged && e.Name == "pause" {
			paused = &e
		}
	}
	require.NotNil(t, paused, "events: %v", events)
	assert.Equal(t, false, paused.Value)

	inst, err := b.Instance()
	require.NoError(t, err)
	assert.Equal(t, engine.Playing, inst.State())

	hwdec, err := b.Property("hwdec")
	require.NoError(t, err)
	assert.Equal(t, "auto-safe", hwdec)
}

func TestOpenMissing(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())

	err := b.Submit(Open{URI: "file:///missing.mp4"})
	assert.ErrorIs(t, err, engine.ErrIO)
	assert.Equal(t, engine.Uninitialized, inst.State())

	err = b.Submit(Open{URI: mediaFile(t, "readme.txt")})
	assert.ErrorIs(t, err, engine.ErrUnsupportedFormat)
	assert.Equal(t, engine.Uninitialized, inst.State())
}

func TestIdempotentPlayPause(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))
	_, _ = b.Poll()

	require.NoError(t, b.Submit(Play{}))
	require.NoError(t, b.Submit(Play{}))
	assert.Equal(t, engine.Playing, inst.State())
	require.NoError(t, b.Submit(Pause{}))
	require.NoError(t, b.Submit(Pause{}))
	assert.Equal(t, engine.Paused, inst.State())

	events, _ := b.Poll()
	assert.Equal(t, []event.Kind{
		event.PropertyChanged, event.StateChanged,
		event.PropertyChanged, event.StateChanged,
	}, kinds(significant(events)))
}

func TestInvalidTransitionKeepsState(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())

	assert.ErrorIs(t, b.Submit(Play{}), engine.ErrInvalidTransition)
	assert.ErrorIs(t, b.Submit(Seek{Position: time.Second}), engine.ErrInvalidTransition)
	assert.NoError(t, b.Submit(Stop{}))
	assert.Equal(t, engine.Uninitialized, inst.State())
	events, _ := b.Poll()
	assert.Empty(t, significant(events))
}

func TestCommandOrder(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())

	results := []<-chan error{
		b.SubmitAsync(Open{URI: "sim://clip?duration=1m"}),
		b.SubmitAsync(Play{}),
		b.SubmitAsync(Seek{Position: 30 * time.Second}),
		b.SubmitAsync(SetProperty{Name: "volume", Value: 20.0}),
		b.SubmitAsync(Pause{}),
		b.SubmitAsync(Stop{}),
	}
	for _, res := range results {
		require.NoError(t, <-res)
	}

	events, _ := b.Poll()
	got := significant(events)
	assert.Equal(t, []event.Kind{
		event.FileLoaded, event.StateChanged,
		event.PropertyChanged, event.StateChanged,
		event.Seek,
		event.PropertyChanged,
		event.PropertyChanged, event.StateChanged,
		event.StateChanged,
	}, kinds(got))
	assert.Equal(t, 30*time.Second, got[4].Position)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestSeekClamps(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())
	require.NoError(t, b.Submit(Open{URI: "sim://clip?duration=1m"}))
	_, _ = b.Poll()

	require.NoError(t, b.Submit(Seek{Position: 90 * time.Second}))
	require.NoError(t, b.Submit(Seek{Position: -time.Second}))
	events, _ := b.Poll()
	var seeks []time.Duration
	for _, e := range events {
		if e.Kind == event.Seek {
			seeks = append(seeks, e.Position)
		}
	}
	assert.Equal(t, []time.Duration{time.Minute, 0}, seeks)
}

func TestStrictSeek(t *testing.T) {
	b := newBridge(t)
	conf := engineConf()
	conf.StrictSeek = true
	newInstance(t, b, conf)
	require.NoError(t, b.Submit(Open{URI: "sim://clip?duration=10s"}))

	assert.ErrorIs(t, b.Submit(Seek{Position: time.Minute}), engine.ErrInvalidRange)
	assert.NoError(t, b.Submit(Seek{Position: 5 * time.Second}))
}

func TestProperties(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())

	_, err := b.Property("no-such-thing")
	assert.ErrorIs(t, err, engine.ErrUnknownProperty)
	assert.ErrorIs(t, b.Submit(SetProperty{Name: "no-such-thing", Value: 1}), engine.ErrUnknownProperty)

	require.NoError(t, b.Submit(SetProperty{Name: "volume", Value: 55.0}))
	v, err := b.Property("volume")
	require.NoError(t, err)
	assert.Equal(t, 55.0, v)
	assert.Equal(t, 55.0, inst.Snapshot().Volume)
}

func TestEndOfFile(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	require.NoError(t, b.Submit(Open{URI: "sim://clip?duration=30ms"}))
	require.NoError(t, b.Submit(Play{}))

	events := pollUntil(t, b, event.EndOfFile)
	assert.Contains(t, kinds(events), event.EndOfFile)
	assert.Eventually(t, func() bool { return inst.State() == engine.Stopped }, time.Second, time.Millisecond)
	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))
}

func TestFault(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	require.NoError(t, b.Submit(Open{URI: "sim://clip?duration=1m&fail=20ms"}))
	require.NoError(t, b.Submit(Play{}))

	events := significant(pollUntil(t, b, event.Error))
	assert.Eventually(t, func() bool { return inst.State() == engine.Errored }, time.Second, time.Millisecond)
	last, _ := b.Poll()
	events = append(events, significant(last)...)
	ks := kinds(events)
	require.GreaterOrEqual(t, len(ks), 2)
	assert.Equal(t, []event.Kind{event.Error, event.StateChanged}, ks[len(ks)-2:])

	assert.ErrorIs(t, b.Submit(Play{}), ErrInstanceErrored)
	assert.ErrorIs(t, b.Submit(Open{URI: "sim://clip"}), ErrInstanceErrored)
	assert.ErrorIs(t, b.Bind(surface.NewImage(8, 8)), ErrInstanceErrored)

	require.NoError(t, b.Teardown())
	newInstance(t, b, engineConf())
}

func TestBindTwice(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())
	a, other := surface.NewImage(32, 18), surface.NewImage(32, 18)

	require.NoError(t, b.Bind(a))
	assert.ErrorIs(t, b.Bind(other), surface.ErrAlreadyBound)
	require.NoError(t, b.Unbind())
	require.NoError(t, b.Bind(other))
	assert.NoError(t, b.Unbind())
	assert.ErrorIs(t, b.Unbind(), surface.ErrNotBound)
}

func TestRendering(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())
	img := surface.NewImage(64, 36)
	require.NoError(t, b.Bind(img))

	require.NoError(t, b.Submit(Open{URI: "sim://clip?duration=1m"}))
	require.NoError(t, b.Submit(Play{}))
	assert.Eventually(t, func() bool { return img.Frames() > 2 }, 2*time.Second, time.Millisecond)
	assert.NotZero(t, img.Snapshot().RGBAAt(1, 1).R, "the engine drew into the surface")

	require.NoError(t, b.Resize(128, 72))
	assert.Eventually(t, func() bool {
		w, _ := img.Size()
		return w == 128
	}, time.Second, time.Millisecond)

	require.NoError(t, b.Unbind())
	frames := img.Frames()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frames, img.Frames())
}

func TestSubscribe(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())

	var mu sync.Mutex
	var got []event.Kind
	cancel, err := b.Subscribe(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Kind == event.StateChanged {
			got = append(got, e.Kind)
		}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))
	require.NoError(t, b.Submit(Play{}))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)
}

func TestSuspendResume(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))

	require.NoError(t, b.Suspend())
	require.NoError(t, b.Resume())
	assert.Equal(t, engine.Ready, inst.State(), "nothing to resume")

	require.NoError(t, b.Submit(Play{}))
	require.NoError(t, b.Suspend())
	assert.Equal(t, engine.Paused, inst.State())
	require.NoError(t, b.Resume())
	assert.Equal(t, engine.Playing, inst.State())

	require.NoError(t, b.Suspend())
	require.NoError(t, b.Submit(Play{}))
	require.NoError(t, b.Submit(Pause{}))
	require.NoError(t, b.Resume())
	assert.Equal(t, engine.Paused, inst.State(), "the host paused after suspend")
}

func TestTeardown(t *testing.T) {
	b := newBridge(t)
	inst := newInstance(t, b, engineConf())
	img := surface.NewImage(16, 16)
	require.NoError(t, b.Bind(img))
	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))
	require.NoError(t, b.Submit(Play{}))

	require.NoError(t, b.Submit(Teardown{}))
	assert.Nil(t, inst.Poll(), "queued events are discarded")
	assert.ErrorIs(t, inst.Submit(Play{}), ErrClosed)
	assert.ErrorIs(t, inst.Bind(img), ErrClosed)
	assert.NoError(t, inst.Teardown())

	_, err := b.Instance()
	assert.ErrorIs(t, err, ErrNoInstance)

	frames := img.Frames()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frames, img.Frames(), "no rendering after teardown")
}

func TestTeardownStepFails(t *testing.T) {
	b := newBridge(t)
	conf := engineConf()
	conf.Native = "sim-stuck"
	inst := newInstance(t, b, conf)
	native := <-stuck
	img := surface.NewImage(16, 16)
	require.NoError(t, b.Bind(img))
	require.NoError(t, b.Submit(Open{URI: "sim://clip"}))
	require.NoError(t, b.Submit(SetProperty{Name: "volume", Value: 10.0}))

	err := b.Teardown()
	require.Error(t, err)
	assert.ErrorIs(t, err, errStuck)
	assert.ErrorIs(t, err, engine.ErrEngineInternal)
	assert.Contains(t, err.Error(), "stop:")

	select {
	case <-native.destroyed:
	default:
		t.Fatal("the engine wasn't released")
	}
	assert.Nil(t, inst.Poll(), "queued events are discarded")
	assert.ErrorIs(t, inst.Bind(img), ErrClosed)
	_, err = b.Instance()
	assert.ErrorIs(t, err, ErrNoInstance)
	assert.NoError(t, inst.Teardown(), "reported once")

	frames := img.Frames()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frames, img.Frames(), "the surface is unbound")
}

func TestTeardownBlockedRelay(t *testing.T) {
	b := New(config.Relay{Capacity: 2, Policy: config.PolicyBlock}, nil, logger.Nop())
	t.Cleanup(func() { _ = b.Close() })
	newInstance(t, b, engineConf())

	// nobody polls, the open fills the relay and waits for space
	open := b.SubmitAsync(Open{URI: "sim://clip"})
	down := make(chan error, 1)
	go func() { down <- b.Teardown() }()

	select {
	case err := <-down:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("teardown hangs on a full relay")
	}
	select {
	case <-open:
	case <-time.After(time.Second):
		t.Fatal("open is still blocked")
	}
	_, err := b.Instance()
	assert.ErrorIs(t, err, ErrNoInstance)
}

func TestTeardownAsync(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())
	open := b.SubmitAsync(Open{URI: "sim://clip"})
	down := b.SubmitAsync(Teardown{})
	assert.NoError(t, <-open)
	assert.NoError(t, <-down)
}

func TestClose(t *testing.T) {
	b := newBridge(t)
	newInstance(t, b, engineConf())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, err := b.Create(engineConf())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Submit(Play{}), ErrClosed)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("open", "sim://clip", 0, "", nil)
	require.NoError(t, err)
	assert.Equal(t, Open{URI: "sim://clip"}, cmd)

	cmd, err = ParseCommand("seek", "", time.Second, "", nil)
	require.NoError(t, err)
	assert.Equal(t, Seek{Position: time.Second}, cmd)

	_, err = ParseCommand("open", "", 0, "", nil)
	assert.Error(t, err)
	_, err = ParseCommand("set-property", "", 0, "", 1)
	assert.Error(t, err)
	_, err = ParseCommand("rewind", "", 0, "", nil)
	assert.Error(t, err)

	for _, kind := range []string{"play", "pause", "stop", "teardown"} {
		cmd, err := ParseCommand(kind, "", 0, "", nil)
		require.NoError(t, err)
		assert.Equal(t, kind, cmd.Kind())
	}
}
