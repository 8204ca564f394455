package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

const readChunkSize = 32 * 1024

// Sink receives every valid event line. *Hub broadcasts locally; *Bus goes through Redis.
type Sink interface {
	Publish(ctx context.Context, line []byte) error
}

// Server accepts producer connections on a TCP socket
type Server struct {
	addr    string
	maxLine int
	sink    Sink
	logger  zerolog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a relay server. maxLine <= 0 uses DefaultMaxLineBytes.
func NewServer(addr string, maxLine int, sink Sink) *Server {
	return &Server{
		addr:    addr,
		maxLine: maxLine,
		sink:    sink,
		logger:  logging.NewLogger("relay"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP socket
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts producers until ctx is cancelled, then closes every
// connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("relay server is not listening")
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("relay listening for producers")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// ListenAndServe combines Listen and Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	telemetry.RelayProducers.Inc()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
	telemetry.RelayProducers.Dec()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// handleConn reads one producer until EOF. Parse errors never close the connection.
func (s *Server) handleConn(ctx context.Context, conn io.Reader) {
	logger := s.logger.With().Str("producer", remoteAddr(conn)).Logger()
	logger.Info().Msg("producer connected")

	decoder := NewLineDecoder(s.maxLine)
	buf := make([]byte, readChunkSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			lines, dropped := decoder.Feed(buf[:n])
			for i := 0; i < dropped; i++ {
				telemetry.RelayEventsTotal.WithLabelValues("oversized").Inc()
				logger.Warn().Msg("event line exceeds maximum size, dropped")
			}
			for _, line := range lines {
				s.ingest(ctx, logger, line)
			}
		}
		if err != nil {
			if pending := decoder.Pending(); pending > 0 {
				logger.Warn().Int("bytes", pending).Msg("producer closed mid-line, discarding tail")
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn().Err(err).Msg("producer read failed")
			}
			logger.Info().Msg("producer disconnected")
			return
		}
	}
}

// ingest forwards one line unmodified if it is a JSON object
func (s *Server) ingest(ctx context.Context, logger zerolog.Logger, line []byte) {
	event, err := parseEvent(line)
	if err != nil {
		telemetry.RelayEventsTotal.WithLabelValues("malformed").Inc()
		logger.Warn().Err(err).Msg("malformed event line, dropped")
		return
	}

	if err := s.sink.Publish(ctx, line); err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("failed to publish event")
		return
	}

	telemetry.RelayEventsTotal.WithLabelValues("forwarded").Inc()
	logger.Debug().Str("type", event.Type).Msg("broadcasting event")
}

// parseEvent checks that line is a single JSON object with a string type, if any
func parseEvent(line []byte) (*models.AgentEvent, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("event is not a JSON object")
	}
	var event models.AgentEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &event, nil
}

func remoteAddr(r io.Reader) string {
	if conn, ok := r.(net.Conn); ok && conn.RemoteAddr() != nil {
		return conn.RemoteAddr().String()
	}
	return "unknown"
}
