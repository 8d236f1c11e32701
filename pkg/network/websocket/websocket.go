package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	sendBuffer     = 64
)

var ErrClosed = errors.New("websocket is closed")

// WS is a websocket connection with serialized reads and writes.
type WS struct {
	ID   uuid.UUID
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	OnMessage func(message []byte)

	pingPong bool

	once     sync.Once
	quit     chan struct{}
	shutdown sync.WaitGroup
	done     chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
	// the bridge serves local hosts only
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewServer upgrades a host request into a websocket connection.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log)
}

func NewClient(ctx context.Context, address string, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log)
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) (*WS, error) {
	id, err := uuid.NewV4()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &WS{
		ID:       id,
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, sendBuffer),
		log:      log.Extend(log.With().Str("c", id.String())),
		pingPong: pingPong,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Listen starts reading and writing, OnMessage should be set before.
func (ws *WS) Listen() {
	ws.shutdown.Add(2)
	go ws.writer()
	go ws.reader()
	go func() {
		ws.shutdown.Wait()
		_ = ws.conn.close()
		close(ws.done)
		ws.log.Debug().Msg("websocket is closed")
	}()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.shutdown.Done()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongTime)) })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		ws.log.Trace().Msgf("read: %s", message)
		if ws.OnMessage != nil {
			ws.OnMessage(message)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer ws.shutdown.Done()
	for {
		select {
		case <-ws.quit:
			_ = ws.conn.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// unblocks the reader
			_ = ws.conn.close()
			return
		case message := <-ws.send:
			ws.log.Trace().Msgf("write: %s", message)
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Warn().Err(err).Msg("websocket write")
				ws.Close()
			}
		case <-ping:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				ws.log.Warn().Err(err).Msg("websocket ping")
				ws.Close()
			}
		}
	}
}

// Write queues data for sending, it waits while the send buffer is full.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.quit:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.quit:
		return ErrClosed
	}
}

// Close starts closing the connection, Done tells when it's over.
func (ws *WS) Close() { ws.once.Do(func() { close(ws.quit) }) }

func (ws *WS) Done() <-chan struct{} { return ws.done }
