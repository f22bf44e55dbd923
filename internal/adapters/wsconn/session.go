// Package wsconn ejecuta una sesión WebSocket: dial, suscripción, ping y lectura.
// No reconecta; eso lo decide cada componente con su propio delay.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
	writeTimeout            = 5 * time.Second
)

// Options configura una sesión.
type Options struct {
	ID           string // para logs, ej. "binance:btcusdt"
	URL          string
	ReadTimeout  time.Duration
	PingInterval time.Duration // 0 = sin ping propio
	PingMessage  []byte        // nil = ping de control; Polymarket espera el texto "PING"
	Header       http.Header
}

// Writer permite enviar mensajes de texto durante la sesión (suscripciones).
type Writer interface {
	WriteJSON(v any) error
	WriteText(msg []byte) error
}

// session serializa las escrituras sobre la conexión.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *session) WriteText(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *session) ping(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(writeTimeout)
	if msg == nil {
		return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Run conecta, llama subscribe y entrega cada mensaje a onMessage hasta que la
// conexión falla o ctx se cancela. Con ctx cancelado devuelve nil.
func Run(ctx context.Context, opts Options, subscribe func(Writer) error, onMessage func([]byte)) error {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("wsconn.Run: dial %s: %w", opts.ID, err)
	}
	defer conn.Close()

	s := &session{conn: conn}
	if subscribe != nil {
		if err := subscribe(s); err != nil {
			return fmt.Errorf("wsconn.Run: subscribe %s: %w", opts.ID, err)
		}
	}

	done := make(chan struct{})
	defer close(done)

	// Cerrar la conexión desbloquea ReadMessage cuando se cancela el contexto.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if opts.PingInterval > 0 {
		go pingLoop(s, opts, done)
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("wsconn.Run: %s closed by server: %w", opts.ID, err)
			}
			return fmt.Errorf("wsconn.Run: read %s: %w", opts.ID, err)
		}
		onMessage(msg)
	}
}

func pingLoop(s *session, opts Options, done <-chan struct{}) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.ping(opts.PingMessage); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					slog.Debug("wsconn: ping failed", "id", opts.ID, "err", err)
				}
				// la lectura detectará la caída
				s.conn.Close()
				return
			}
		}
	}
}
