// Package logsource subscribes to the target program's on-chain logs over a
// Solana JSON-RPC websocket (logsSubscribe) and emits decode.Frame values on
// a channel for the Orchestrator's dispatcher to consume.
//
// A single connection is maintained with exponential reconnect backoff
// (1s -> 30s cap) and a read deadline that forces a reconnect on silent
// failure. There is only one notification shape (logsNotification), so
// dispatch is a single unmarshal rather than a switch on event type.
package logsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pumpsentinel/internal/decode"
	"pumpsentinel/internal/errs"
)

const (
	pingInterval     = 5 * time.Second // RPC providers drop quiet subscriptions after ~10s
	readTimeout      = 15 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	frameBufferSize  = 1024
)

// Source streams decoded log frames from the chain.
type Source struct {
	url        string
	programID  string
	commitment string

	conn   *websocket.Conn
	connMu sync.Mutex

	frames chan decode.Frame
	logger *slog.Logger
}

// New constructs a Source against the given websocket RPC endpoint.
func New(wsURL, programID, commitment string, logger *slog.Logger) *Source {
	if commitment == "" {
		commitment = "processed"
	}
	return &Source{
		url:        wsURL,
		programID:  programID,
		commitment: commitment,
		frames:     make(chan decode.Frame, frameBufferSize),
		logger:     logger.With("component", "logsource"),
	}
}

// Frames returns the read-only channel of decoded log frames.
func (s *Source) Frames() <-chan decode.Frame { return s.frames }

// Run connects and maintains the subscription with auto-reconnect. Blocks
// until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("log source disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close closes the underlying connection, if any.
func (s *Source) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"` // null for successful transactions, an error object otherwise
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (s *Source) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errs.Transport("logsource.Dial", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{s.programID}},
			map[string]any{"commitment": s.commitment},
		},
	}
	if err := s.writeJSON(req); err != nil {
		return errs.Transport("logsource.Subscribe", err)
	}

	s.logger.Info("log source connected", "program_id", s.programID)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		s.dispatchMessage(msg)
	}
}

func (s *Source) dispatchMessage(data []byte) {
	var n logsNotification
	if err := json.Unmarshal(data, &n); err != nil {
		s.logger.Debug("ignoring non-json log source message", "data", string(data))
		return
	}
	if n.Method != "logsNotification" {
		return
	}
	if errField := n.Params.Result.Value.Err; len(errField) > 0 && string(errField) != "null" {
		return
	}

	frame := decode.Frame{
		Slot:      n.Params.Result.Context.Slot,
		Signature: n.Params.Result.Value.Signature,
		Logs:      n.Params.Result.Value.Logs,
	}

	select {
	case s.frames <- frame:
	default:
		s.logger.Warn("frame channel full, dropping frame", "signature", frame.Signature)
	}
}

func (s *Source) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Source) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("log source not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Source) writeMessage(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("log source not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(msgType, data)
}
