// Package stdio connects a protocol server to a process's standard streams.
// Messages are newline-delimited JSON: one message per line in, one per
// line out.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/toolserver-go/internal/server"
)

const (
	// maxLineSize bounds a single inbound message.
	maxLineSize = 1024 * 1024

	queueDepth = 64
)

// Transport pumps newline-delimited messages between an io.Reader/io.Writer
// pair and a protocol server.
type Transport struct {
	log    *slog.Logger
	srv    *server.Server
	input  io.Reader
	output io.Writer
}

// New creates a Transport over the given streams.
func New(log *slog.Logger, srv *server.Server, input io.Reader, output io.Writer) *Transport {
	return &Transport{
		log:    log.With("component", "stdio"),
		srv:    srv,
		input:  input,
		output: output,
	}
}

// Run serves the connection until the input stream ends, the context is
// cancelled, or the server shuts down.
func (t *Transport) Run(ctx context.Context) error {
	readQ := make(chan string, queueDepth)
	writeQ := make(chan string, queueDepth)

	// The reader is detached rather than group-managed: a blocking Read on
	// stdin cannot be interrupted, so on cancellation this goroutine is
	// abandoned and exits with the process.
	go t.readLoop(readQ)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(writeQ)

		return t.srv.RunConnection(ctx, readQ, func(line string) error {
			select {
			case writeQ <- line:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	group.Go(func() error {
		return t.writeLoop(ctx, writeQ)
	})

	return group.Wait()
}

// readLoop reads input lines into the queue, closing it at end of input.
func (t *Transport) readLoop(readQ chan<- string) {
	defer close(readQ)

	scanner := bufio.NewScanner(t.input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		readQ <- scanner.Text()
	}

	if err := scanner.Err(); err != nil {
		t.log.Warn("Input stream error", "error", err)

		return
	}

	t.log.Debug("Input stream closed")
}

// writeLoop drains the write queue to the output stream, one message per
// line. It returns once the queue closes or the context is cancelled.
// Cancellation flushes responses already queued for in-flight requests
// before returning.
func (t *Transport) writeLoop(ctx context.Context, writeQ <-chan string) error {
	w := bufio.NewWriter(t.output)

	for {
		select {
		case <-ctx.Done():
			t.flushQueued(w, writeQ)

			return ctx.Err()

		case line, ok := <-writeQ:
			if !ok {
				return nil
			}

			if err := t.writeLine(w, line); err != nil {
				return err
			}
		}
	}
}

// flushQueued writes whatever is already buffered in the queue without
// blocking for more.
func (t *Transport) flushQueued(w *bufio.Writer, writeQ <-chan string) {
	for {
		select {
		case line, ok := <-writeQ:
			if !ok {
				return
			}

			if err := t.writeLine(w, line); err != nil {
				t.log.Error("Failed to flush queued message", "error", err)

				return
			}
		default:
			return
		}
	}
}

func (t *Transport) writeLine(w *bufio.Writer, line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	if _, err := w.WriteString(line); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}
