package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// EventsPath is the SSE endpoint served by the preview server.
const EventsPath = "/__preview__/events"

// SourceFunc produces the current page inputs. It is called per request so
// the page always reflects the file on disk.
type SourceFunc func() (InteractiveGraphOptions, error)

// PreviewServer serves the interactive diagram page with live reload.
type PreviewServer struct {
	source SourceFunc
	hub    *LiveReloadHub
	logger *slog.Logger
}

// NewPreviewServer creates a preview server. hub may be nil to disable
// live reload.
func NewPreviewServer(source SourceFunc, hub *LiveReloadHub, logger *slog.Logger) *PreviewServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PreviewServer{source: source, hub: hub, logger: logger}
}

// Handler returns the page and event routes.
func (p *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	var page http.Handler = http.HandlerFunc(p.servePage)
	if p.hub != nil {
		page = liveReloadMiddleware(page)
		mux.Handle(EventsPath, p.hub.SSEHandler())
	}
	mux.Handle("/", page)
	return mux
}

func (p *PreviewServer) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	opts, err := p.source()
	if err != nil {
		p.logger.Warn("preview source failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page, err := RenderInteractiveHTML(opts)
	if err != nil {
		p.logger.Error("preview render failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, page)
}

// Serve listens on ln until ctx is cancelled, then shuts down gracefully.
func (p *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: p.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	p.logger.Info("preview server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		if p.hub != nil {
			// SSE handlers block until the hub stops.
			p.hub.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
