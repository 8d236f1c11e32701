// Package host serves the bridge to an out-of-process host UI
// over a websocket with JSON messages.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/flixor/mediabridge/pkg/bridge"
	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/network/httpx"
	"github.com/flixor/mediabridge/pkg/network/websocket"
)

type Host struct {
	conf   config.Host
	engine config.Engine
	bridge *bridge.Bridge
	server *httpx.Server
	log    *logger.Logger

	mu          sync.Mutex
	conn        *websocket.WS
	unsubscribe func()
}

// New makes the host transport for b. The engine config is used
// when the host asks to create a new instance.
func New(conf config.Host, engine config.Engine, b *bridge.Bridge, log *logger.Logger) (*Host, error) {
	h := &Host{conf: conf, engine: engine, bridge: b, log: log.Module("host")}
	server, err := httpx.NewServer(conf.Address, func(*httpx.Server) httpx.Handler {
		return httpx.NewServeMux("").HandleFunc(conf.Path, h.ServeHTTP)
	}, httpx.WithLogger(h.log), httpx.WithPortRoll(conf.PortRoll))
	if err != nil {
		return nil, err
	}
	h.server = server
	return h, nil
}

// ServeHTTP takes the host connection, only one at a time.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	busy := h.conn != nil
	h.mu.Unlock()
	if busy {
		http.Error(w, "the bridge has a host already", http.StatusConflict)
		return
	}

	conn, err := websocket.NewServer(w, r, h.log)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	h.mu.Lock()
	if h.conn != nil {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()

	conn.OnMessage = func(data []byte) { h.handle(conn, data) }
	conn.Listen()
	h.subscribe(conn)
	h.log.Info().Msgf("host %v connected from %v", conn.ID, r.RemoteAddr)

	go func() {
		<-conn.Done()
		h.mu.Lock()
		if h.conn == conn {
			h.conn = nil
			if h.unsubscribe != nil {
				h.unsubscribe()
				h.unsubscribe = nil
			}
		}
		h.mu.Unlock()
		h.log.Info().Msgf("host %v disconnected", conn.ID)
	}()
}

// subscribe forwards the events of the current instance, if any.
func (h *Host) subscribe(conn *websocket.WS) {
	cancel, err := h.bridge.Subscribe(func(e event.Event) { h.send(conn, Message{Type: typeEvent, Event: &e}) })
	if err != nil {
		h.log.Debug().Err(err).Msg("no events")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.unsubscribe = cancel
}

func (h *Host) handle(conn *websocket.WS, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		h.send(conn, reply(0, nil, fmt.Errorf("bad request: %w", err)))
		return
	}
	value, err := h.apply(conn, req)
	h.send(conn, reply(req.ID, value, err))
}

func (h *Host) apply(conn *websocket.WS, req Request) (any, error) {
	switch req.Cmd {
	case cmdCreate:
		inst, err := h.bridge.Create(h.engine)
		if err != nil {
			return nil, err
		}
		h.subscribe(conn)
		return inst.ID.String(), nil
	case cmdProperty:
		return h.bridge.Property(req.Name)
	case cmdState:
		inst, err := h.bridge.Instance()
		if err != nil {
			return nil, err
		}
		return inst.Snapshot(), nil
	case cmdSuspend:
		return nil, h.bridge.Suspend()
	case cmdResume:
		return nil, h.bridge.Resume()
	}
	cmd, err := bridge.ParseCommand(req.Cmd, req.URI, req.Position, req.Name, req.Value)
	if err != nil {
		return nil, err
	}
	return nil, h.bridge.Submit(cmd)
}

func (h *Host) send(conn *websocket.WS, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error().Err(err).Msg("message encoding")
		return
	}
	if err = conn.Write(data); err != nil {
		h.log.Debug().Err(err).Msgf("%v message is dropped", m.Type)
	}
}

func (h *Host) Run() { h.server.Run() }

func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return h.server.Shutdown(ctx)
}

func (h *Host) Addr() string { return h.server.Addr }

func (h *Host) String() string { return fmt.Sprintf("host::%s%s", h.server.Addr, h.conf.Path) }
