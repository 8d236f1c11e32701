package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/flixor/mediabridge/pkg/bridge"
	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/host"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/monitoring"
	osx "github.com/flixor/mediabridge/pkg/os"
	"github.com/flixor/mediabridge/pkg/relay"
	"github.com/flixor/mediabridge/pkg/service"
	"github.com/flixor/mediabridge/pkg/surface"
	"github.com/flixor/mediabridge/pkg/surface/sdlgl"
	"github.com/flixor/mediabridge/pkg/thread"
	flag "github.com/spf13/pflag"
)

var Version = "?"

const (
	pollInterval    = 10 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

type window interface {
	surface.Surface
	PollEvents(onResize func(w, h int)) bool
	Close() error
}

// loadConfig reads the config file from --conf first,
// so the rest of the flags go on top of it.
func loadConfig() (*config.Bridge, string, bool, error) {
	var path string
	pre := flag.NewFlagSet("pre", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	pre.StringVarP(&path, "conf", "c", "", "")
	_ = pre.Parse(os.Args[1:])

	conf, file, err := config.Load(path)
	if err != nil {
		return nil, "", false, fmt.Errorf("config: %w", err)
	}
	flag.StringP("conf", "c", path, "Config file or dir")
	debug := flag.BoolP("debug", "d", false, "Debug logs")
	conf.WithFlags(flag.CommandLine)
	flag.Parse()
	if err := conf.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("config: %w", err)
	}
	return conf, file, *debug, nil
}

func newLogger(conf config.Log, debug bool) *logger.Logger {
	var log *logger.Logger
	if conf.JSON {
		log = logger.New(debug)
	} else {
		log = logger.NewConsole(debug, "bridged", conf.NoColor)
	}
	if !debug {
		setLevel(conf.Level, log)
	}
	return log
}

func setLevel(level string, log *logger.Logger) {
	l, err := logger.ParseLevel(level)
	if err != nil {
		log.Warn().Err(err).Msg("bad log level")
		return
	}
	logger.SetGlobalLevel(l)
}

func run() {
	conf, file, debug, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := newLogger(conf.Log, debug)
	log.Info().Msgf("version: %v", Version)
	if file != "" {
		log.Info().Msgf("config: %v", file)
	}
	log.Debug().Msgf("conf: %+v", *conf)

	if err := serve(conf, file, debug, log); err != nil {
		log.Error().Err(err).Msg("bridge failed")
		os.Exit(1)
	}
}

func serve(conf *config.Bridge, file string, debug bool, log *logger.Logger) error {
	lock, err := osx.NewFileLock(conf.LockFile)
	if err != nil {
		return err
	}
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("%v: %w", lock.Path(), err)
	}
	defer func() { _ = lock.Unlock() }()

	if file != "" && !debug {
		w, err := config.Watch(file,
			func(c *config.Bridge) {
				log.Info().Msgf("log level: %v", c.Log.Level)
				setLevel(c.Log.Level, log)
			},
			func(err error) { log.Warn().Err(err).Msg("config reload") },
		)
		if err != nil {
			log.Warn().Err(err).Msg("config changes are not watched")
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	var dispatcher relay.Dispatcher
	var win window
	var surf surface.Surface
	if conf.Surface.Headless {
		surf = surface.NewImage(conf.Surface.Width, conf.Surface.Height)
	} else {
		if win, err = sdlgl.New(conf.Surface, log); err != nil {
			return err
		}
		defer func() { _ = win.Close() }()
		surf = win
		dispatcher = thread.MainDispatcher{}
	}

	b := bridge.New(conf.Relay, dispatcher, log)
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("bridge close")
		}
	}()
	if _, err := b.Create(conf.Engine); err != nil {
		return err
	}
	if err := b.Bind(surf); err != nil {
		return err
	}

	services := service.Group{}
	h, err := host.New(conf.Host, conf.Engine, b, log)
	if err != nil {
		return err
	}
	services.Add(h)
	if conf.Monitoring.IsEnabled() {
		m, err := monitoring.New(conf.Monitoring, log)
		if err != nil {
			return err
		}
		services.Add(m)
	}
	services.Start()
	log.Info().Msgf("bridge is ready at %v", h)

	wait(osx.ExpectTermination(), win, b)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("bye")
	return nil
}

// wait blocks until a termination signal or until the window is closed.
func wait(done chan struct{}, win window, b *bridge.Bridge) {
	if win == nil {
		<-done
		return
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			open := true
			thread.MainMaybe(func() {
				open = win.PollEvents(func(w, h int) { _ = b.Resize(w, h) })
			})
			if !open {
				return
			}
		}
	}
}

// the window and its events stay on the main thread
func init() { runtime.LockOSThread() }

func main() { thread.MainWrapMaybe(run) }
