// This file implements live-reload via Server-Sent Events (SSE) for the
// preview server. When a watched diagram file changes, connected browsers
// receive reload events.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LiveReloadHub manages SSE connections and file watching for live-reload.
type LiveReloadHub struct {
	files   map[string]struct{}
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.RWMutex
	clients map[chan struct{}]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	lastEvent time.Time
	debounce  time.Duration
}

// NewLiveReloadHub creates a hub that fires when any of files changes.
func NewLiveReloadHub(logger *slog.Logger, files ...string) (*LiveReloadHub, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := &LiveReloadHub{
		files:    make(map[string]struct{}, len(files)),
		watcher:  watcher,
		logger:   logger,
		clients:  make(map[chan struct{}]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		debounce: 200 * time.Millisecond,
	}
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		hub.files[filepath.Clean(f)] = struct{}{}
	}
	return hub, nil
}

// Start begins watching. Directories are watched rather than the files
// themselves so atomic-rename saves are still seen.
func (h *LiveReloadHub) Start() error {
	dirs := make(map[string]struct{})
	for f := range h.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := h.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	go h.watchLoop()
	return nil
}

// Stop shuts down the hub and disconnects all clients. Safe to call twice.
func (h *LiveReloadHub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		h.watcher.Close()

		h.mu.Lock()
		defer h.mu.Unlock()
		for ch := range h.clients {
			close(ch)
		}
		h.clients = make(map[chan struct{}]struct{})
	})
}

// ClientCount returns the number of connected clients.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *LiveReloadHub) watchLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, watched := h.files[filepath.Clean(event.Name)]; !watched {
				continue
			}

			now := time.Now()
			if now.Sub(h.lastEvent) < h.debounce {
				continue
			}
			h.lastEvent = now
			h.logger.Debug("diagram changed", "file", event.Name, "clients", h.ClientCount())
			h.Notify()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watch error", "error", err)
		}
	}
}

// Notify sends a reload signal to every connected client without blocking.
func (h *LiveReloadHub) Notify() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SSEHandler returns an HTTP handler for the SSE endpoint.
func (h *LiveReloadHub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		clientCh := make(chan struct{}, 1)
		h.mu.Lock()
		h.clients[clientCh] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.clients, clientCh)
			h.mu.Unlock()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-h.ctx.Done():
				return
			case _, ok := <-clientCh:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: {\"action\":\"reload\"}\n\n")
				flusher.Flush()
			}
		}
	}
}

// LiveReloadScript connects to the SSE endpoint and reloads on events.
const LiveReloadScript = `<script>
(function() {
  if (typeof(EventSource) === 'undefined') return;
  var reconnectDelay = 1000;
  var maxReconnectDelay = 30000;

  function connect() {
    var es = new EventSource('` + EventsPath + `');
    es.addEventListener('connected', function() { reconnectDelay = 1000; });
    es.addEventListener('reload', function() { location.reload(); });
    es.onerror = function() {
      es.close();
      setTimeout(connect, reconnectDelay);
      reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
    };
  }

  connect();
})();
</script>`

// liveReloadMiddleware injects the live-reload script into HTML responses.
func liveReloadMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filepath.Ext(r.URL.Path) != ".html" && r.URL.Path != "/" && filepath.Ext(r.URL.Path) != "" {
			next.ServeHTTP(w, r)
			return
		}

		irw := &injectingResponseWriter{
			ResponseWriter: w,
			inject:         []byte(LiveReloadScript),
		}
		next.ServeHTTP(irw, r)
		// Handles HTML without </html>.
		irw.Flush()
	})
}

// injectingResponseWriter buffers HTML and injects a script before </body>.
type injectingResponseWriter struct {
	http.ResponseWriter
	inject    []byte
	injected  bool
	buf       []byte
	committed bool
}

func (w *injectingResponseWriter) Write(b []byte) (int, error) {
	if w.committed {
		return w.ResponseWriter.Write(b)
	}

	w.buf = append(w.buf, b...)
	if idx := bytes.LastIndex(w.buf, []byte("</body>")); idx >= 0 && !w.injected {
		newBuf := make([]byte, 0, len(w.buf)+len(w.inject))
		newBuf = append(newBuf, w.buf[:idx]...)
		newBuf = append(newBuf, w.inject...)
		newBuf = append(newBuf, w.buf[idx:]...)
		w.buf = newBuf
		w.injected = true
	}

	if bytes.Contains(w.buf, []byte("</html>")) {
		w.committed = true
		_, err := w.ResponseWriter.Write(w.buf)
		return len(b), err
	}
	return len(b), nil
}

// Flush writes any remaining buffered content.
func (w *injectingResponseWriter) Flush() {
	if !w.committed && len(w.buf) > 0 {
		w.committed = true
		if !w.injected {
			w.buf = append(w.buf, w.inject...)
		}
		w.ResponseWriter.Write(w.buf)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
