package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/visionegg/visionegg-sub000/internal/message"
)

// #region tcp-options
// TCPOptions configures the line-protocol server.
type TCPOptions struct {
	// Trigger receives "go" requests; nil disables the command.
	Trigger *Trigger
	// OnQuit is called for "quit"; the host shuts down in response.
	OnQuit func()
	Sink   message.Sink
	// CommandRate limits lines per second per connection; zero means unlimited.
	CommandRate  float64
	CommandBurst int
}

// #endregion tcp-options

// #region tcp-server
// TCPServer accepts operator connections speaking the line protocol. Each
// connection is served by its own goroutine; replacements reach the render loop
// only through the registry's proxies.
type TCPServer struct {
	registry *Registry
	opts     TCPOptions

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewTCPServer creates a server for the names in registry.
func NewTCPServer(registry *Registry, opts TCPOptions) *TCPServer {
	if opts.Sink == nil {
		opts.Sink = message.Discard
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 1
	}
	return &TCPServer{registry: registry, opts: opts, conns: make(map[net.Conn]struct{})}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *TCPServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close is called.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	slog.Info("control server listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting, closes every connection and waits for their handlers.
func (s *TCPServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// #endregion tcp-server

// #region connection
func (s *TCPServer) handle(conn net.Conn) {
	origin := "tcp:" + conn.RemoteAddr().String()
	defer func() {
		s.registry.Detach(origin)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.wg.Done()
	}()
	s.registry.Attach(origin)
	slog.Info("control connection opened", "origin", origin)

	w := bufio.NewWriter(conn)
	send := func(lines ...string) bool {
		for _, l := range lines {
			if _, err := w.WriteString(l + "\n"); err != nil {
				return false
			}
		}
		return w.Flush() == nil
	}

	greeting := []string{"Hello. This is the stimulus control server. Begin sending commands now."}
	for _, name := range s.registry.Names() {
		greeting = append(greeting, fmt.Sprintf("%q controllable with this connection.", name))
	}
	if !send(greeting...) {
		return
	}

	var limiter *rate.Limiter
	if s.opts.CommandRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.CommandRate), s.opts.CommandBurst)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			if !send("Error: command rate exceeded, line dropped: " + line) {
				return
			}
			continue
		}
		keep, reply := s.process(line, origin)
		if len(reply) > 0 && !send(reply...) {
			return
		}
		if !keep {
			slog.Info("control connection closed", "origin", origin)
			return
		}
	}
}

var helpLines = []string{
	"Commands:",
	"  <name>=const(<active>, <idle>, <type>, <temporal_kind>, <eval_cadence>)",
	`  <name>=eval_str("<active expr>", "<idle expr>", <type>, <temporal_kind>, <eval_cadence>)`,
	`  <name>=exec_str("x = <expr>; ...", "x = <expr>", <type>, <temporal_kind>, <eval_cadence>)`,
	"  <name>          show the controller in use",
	"  go              start the next trial",
	"  help            this text",
	"  close | exit    close this connection",
	"  quit            close this connection and stop the server",
	"types: float int bool str vec; temporal kinds: TIME_SEC_ABSOLUTE TIME_SEC_SINCE_GO FRAMES_SINCE_GO;",
	"cadences: EVERY_FRAME TRANSITIONS NOW_THEN_TRANSITIONS; formulas use t, t_abs or f.",
}

// process handles one line and returns whether to keep the connection and the reply.
func (s *TCPServer) process(line, origin string) (bool, []string) {
	switch strings.ToLower(line) {
	case "close", "exit":
		return false, nil
	case "quit":
		if s.opts.OnQuit != nil {
			s.opts.OnQuit()
		}
		return false, nil
	case "help":
		return true, helpLines
	case "go":
		if s.opts.Trigger == nil {
			return true, []string{"Error with line: go (no trigger on this server)"}
		}
		s.opts.Trigger.Fire()
		return true, nil
	}

	if name, text, ok := strings.Cut(line, "="); ok {
		name = strings.TrimSpace(name)
		text = strings.TrimSpace(text)
		err := s.registry.Submit(name, text, origin)
		if err == nil {
			return true, nil
		}
		var perr *ProtocolError
		if errors.As(err, &perr) {
			s.opts.Sink.Add(message.Info, fmt.Sprintf("%s (%v)", perr.Error(), perr.Err))
			return true, []string{perr.Error()}
		}
		return true, []string{"Error with line: " + line}
	}

	if p, ok := s.registry.Lookup(line); ok {
		return true, []string{fmt.Sprintf("%s=%s", line, p.Describe())}
	}
	return true, []string{"Error with line: " + line}
}

// #endregion connection
