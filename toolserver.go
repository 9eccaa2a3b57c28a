package toolserver

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/wagiedev/toolserver-go/internal/catalog"
	"github.com/wagiedev/toolserver-go/internal/server"
	"github.com/wagiedev/toolserver-go/internal/stdio"
)

// NewCatalog creates an empty tool catalog. A nil logger disables logging.
func NewCatalog(log *slog.Logger, cfg CatalogConfig) *Catalog {
	if log == nil {
		log = NopLogger()
	}

	return catalog.New(log, cfg)
}

// NewServer creates a protocol server over the given catalog.
func NewServer(cat *Catalog, opts ServerOptions) *Server {
	return server.New(cat, opts)
}

// ServeStdio serves the given server on the process's standard streams until
// the input stream ends, the context is cancelled, or a shutdown request is
// received.
func ServeStdio(ctx context.Context, log *slog.Logger, srv *Server) error {
	return Serve(ctx, log, srv, os.Stdin, os.Stdout)
}

// Serve serves the given server on arbitrary streams, one newline-delimited
// JSON message per line in each direction.
func Serve(ctx context.Context, log *slog.Logger, srv *Server, input io.Reader, output io.Writer) error {
	if log == nil {
		log = NopLogger()
	}

	return stdio.New(log, srv, input, output).Run(ctx)
}
