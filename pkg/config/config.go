package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Render backends understood by the engines.
const (
	RenderOpenGL = "opengl"
	RenderSW     = "sw"
)

// Relay overflow policies.
const (
	PolicyDropOldest = "drop-oldest"
	PolicyBlock      = "block"
)

// Bridge is the configuration of the whole bridge process.
type Bridge struct {
	Engine     Engine
	Relay      Relay
	Surface    Surface
	Host       Host
	Monitoring Monitoring
	Log        Log
	// LockFile guards against two processes owning the same GPU surface.
	LockFile string
}

// Engine is the instance configuration passed to the bridge on create.
type Engine struct {
	// Native selects the media engine implementation: mpv or sim.
	Native string `default:"sim"`
	// HwAccel enables GPU-assisted decoding.
	HwAccel bool
	// LogLevel is the engine's own verbosity (mpv levels: no, fatal, error,
	// warn, info, v, debug, trace).
	LogLevel string `default:"warn"`
	// RenderBackend is the GPU API used for the render context: opengl or sw.
	RenderBackend string `default:"sw"`
	// StrictSeek rejects out-of-range seek targets instead of clamping them.
	StrictSeek  bool
	OpenTimeout time.Duration `default:"10s"`
	// Observe lists engine properties relayed as PropertyChanged events.
	Observe []string `default:"[time-pos,duration,demuxer-cache-time,paused-for-cache]"`
	// Options are raw engine options applied before initialization.
	Options map[string]string
}

type Relay struct {
	Capacity int    `default:"256"`
	Policy   string `default:"drop-oldest"`
}

type Surface struct {
	Width    int    `default:"1280"`
	Height   int    `default:"720"`
	Title    string `default:"mediabridge"`
	Headless bool
	GL       struct {
		VersionMajor uint `default:"3"`
		VersionMinor uint `default:"3"`
		// Compat requests a compatibility profile instead of the core one.
		Compat bool
	}
}

type Host struct {
	Address string `default:"localhost:9090"`
	Path    string `default:"/bridge"`
	// PortRoll takes the next free port when the address is busy.
	PortRoll bool
}

type Monitoring struct {
	Port             int `default:"9091"`
	URLPrefix        string
	MetricEnabled    bool
	ProfilingEnabled bool
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Log struct {
	Level string `default:"info"`
	// JSON switches from the console writer to JSON lines.
	JSON    bool
	NoColor bool
}

// Validate checks values that fig defaults can't.
func (e *Engine) Validate() error {
	switch e.RenderBackend {
	case RenderOpenGL, RenderSW:
	default:
		return fmt.Errorf("unsupported render backend: %q", e.RenderBackend)
	}
	if e.OpenTimeout <= 0 {
		return fmt.Errorf("open timeout should be positive, got %v", e.OpenTimeout)
	}
	return nil
}

func (r *Relay) Validate() error {
	if r.Capacity < 1 {
		return fmt.Errorf("relay capacity should be at least 1, got %d", r.Capacity)
	}
	switch r.Policy {
	case PolicyDropOldest, PolicyBlock:
	default:
		return fmt.Errorf("unsupported relay policy: %q", r.Policy)
	}
	return nil
}

func (c *Bridge) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return c.Relay.Validate()
}

// WithFlags binds command line flags on top of the already loaded values.
func (c *Bridge) WithFlags(fs *pflag.FlagSet) *Bridge {
	fs.StringVar(&c.Engine.Native, "engine", c.Engine.Native, "Media engine: [mpv, sim]")
	fs.BoolVar(&c.Engine.HwAccel, "hwaccel", c.Engine.HwAccel, "Enable hardware decoding")
	fs.StringVar(&c.Engine.LogLevel, "engine.log", c.Engine.LogLevel, "Engine log level")
	fs.StringVar(&c.Engine.RenderBackend, "render", c.Engine.RenderBackend, "Render backend: [opengl, sw]")
	fs.BoolVar(&c.Engine.StrictSeek, "strictseek", c.Engine.StrictSeek, "Reject out-of-range seeks")
	fs.IntVar(&c.Relay.Capacity, "relay.cap", c.Relay.Capacity, "Event queue capacity")
	fs.StringVar(&c.Relay.Policy, "relay.policy", c.Relay.Policy, "Event queue overflow policy: [drop-oldest, block]")
	fs.BoolVar(&c.Surface.Headless, "headless", c.Surface.Headless, "Render into memory instead of a window")
	fs.StringVar(&c.Host.Address, "addr", c.Host.Address, "Host transport address (host:port)")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	fs.StringVar(&c.Log.Level, "log", c.Log.Level, "Log level")
	fs.StringVar(&c.LockFile, "lock", c.LockFile, "Process lock file")
	return c
}
