// Package acceptor is the TCP transport (spec.md §4.8's C8): it accepts
// connections, pairs each with a internal/line.Line, and runs the
// reader/driver goroutine pair that feeds socket bytes into the Line's
// reassembly buffer and writes the dispatcher's responses back out.
//
// Grounded on JKI757-CatLocator/go-mqtt-server's internal/mqttbroker.Broker
// (Start/Stop, the temporary-accept-error retry loop, a tracked-clients map
// closed on Stop), generalized from its single read-header/read-body/
// dispatch loop into two goroutines per connection so that a registry
// broadcast destined for this Line can be written to the socket without
// waiting on the next inbound read.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devicelink/mqttbroker/internal/dispatch"
	"github.com/devicelink/mqttbroker/internal/line"
	"github.com/devicelink/mqttbroker/internal/mqttcodec"
)

// readBufferSize is the chunk size each conn.Read call requests; it bears
// no relation to MQTT packet size, only to syscall batching.
const readBufferSize = 4096

// Acceptor owns the listening socket and every live connection's Line.
type Acceptor struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher

	mu           sync.Mutex
	listener     net.Listener
	conns        map[net.Conn]struct{}
	wg           sync.WaitGroup
	shuttingDown atomic.Bool
}

// New constructs an Acceptor that dispatches through d.
func New(logger *slog.Logger, d *dispatch.Dispatcher) *Acceptor {
	return &Acceptor{logger: logger, dispatcher: d, conns: make(map[net.Conn]struct{})}
}

// Serve listens on bind and accepts connections until ctx is cancelled or
// Stop is called. It blocks; callers typically run it in its own
// goroutine managed by an errgroup.
func (a *Acceptor) Serve(ctx context.Context, bind string) error {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("mqtt listen: %w", err)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("mqtt acceptor listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = a.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.shuttingDown.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				a.logger.Warn("temporary accept error", "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("mqtt accept: %w", err)
		}

		a.addConn(conn)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleConn(ctx, conn)
		}()
	}
}

// Stop closes the listener and every tracked connection, then waits for
// all connection goroutines to exit. Safe to call more than once.
func (a *Acceptor) Stop() error {
	if !a.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	ln := a.listener
	a.listener = nil
	a.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	a.mu.Lock()
	for c := range a.conns {
		_ = c.Close()
	}
	a.conns = make(map[net.Conn]struct{})
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}

func (a *Acceptor) addConn(c net.Conn) {
	a.mu.Lock()
	a.conns[c] = struct{}{}
	a.mu.Unlock()
}

func (a *Acceptor) removeConn(c net.Conn) {
	a.mu.Lock()
	delete(a.conns, c)
	a.mu.Unlock()
}

func (a *Acceptor) handleConn(parent context.Context, conn net.Conn) {
	defer func() {
		a.removeConn(conn)
		_ = conn.Close()
	}()

	l := line.New(a.logger)
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go a.readLoop(ctx, cancel, conn, l)

	a.driveLoop(ctx, conn, l)
	a.dispatcher.Teardown(l)
}

// readLoop owns the only conn.Read call for this connection and pushes
// every non-empty chunk onto the Line's inbound channel. It cancels ctx
// on any read error or EOF, which is the only signal driveLoop needs to
// stop waiting on Recv.
func (a *Acceptor) readLoop(ctx context.Context, cancel context.CancelFunc, conn net.Conn, l *line.Line) {
	defer cancel()
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			l.PushSocketBytes(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Debug("connection read error", "client", l.ClientID(), "error", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// driveLoop is the single writer for conn: it drains the Line's inbound
// channel, reassembles frames from socket bytes via Line.Feed, dispatches
// each complete frame, and serializes registry broadcasts destined for
// this Line into outbound PUBLISH bytes.
func (a *Acceptor) driveLoop(ctx context.Context, conn net.Conn, l *line.Line) {
	for {
		msg, ok := l.Recv(ctx)
		if !ok {
			return
		}

		if raw, isBytes := msg.IsSocketBytes(); isBytes {
			frames, err := l.Feed(raw)
			if err != nil {
				a.logger.Debug("closing line: frame reassembly error", "client", l.ClientID(), "error", err)
				return
			}
			for _, frame := range frames {
				outcome := a.dispatcher.HandleFrame(l, frame)
				if !a.writeAll(conn, l, outcome.Responses) {
					return
				}
				if outcome.Terminate {
					return
				}
			}
			continue
		}

		if env, isSub := msg.IsSubscription(); isSub {
			_, bytes := mqttcodec.NewPublish(env.Payload, l.ProtocolLevel())
			if !a.writeAll(conn, l, [][]byte{bytes}) {
				return
			}
		}
	}
}

func (a *Acceptor) writeAll(conn net.Conn, l *line.Line, chunks [][]byte) bool {
	for _, b := range chunks {
		if _, err := conn.Write(b); err != nil {
			a.logger.Debug("connection write error", "client", l.ClientID(), "error", err)
			return false
		}
	}
	return true
}
