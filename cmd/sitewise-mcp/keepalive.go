package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var keepaliveComment = []byte(": keepalive\n\n")

// keepaliveWriter serializes writes to an SSE stream so that periodic
// comment lines never interleave with events written by the MCP handler.
type keepaliveWriter struct {
	http.ResponseWriter
	mu sync.Mutex
}

func (w *keepaliveWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseWriter.Write(p)
}

func (w *keepaliveWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flush()
}

func (w *keepaliveWriter) flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ping writes one comment line. It reports false once the client is gone.
func (w *keepaliveWriter) ping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.ResponseWriter.Write(keepaliveComment); err != nil {
		slog.Debug("sse keepalive write failed", "error", err)
		return false
	}
	w.flush()
	return true
}

// sseWithKeepalive wraps the SSE handler so that long-lived GET streams
// receive a comment every interval. Other methods pass through untouched.
func sseWithKeepalive(handler http.Handler, interval time.Duration) http.Handler {
	if interval <= 0 {
		interval = defaultKeepalive
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			handler.ServeHTTP(w, r)
			return
		}

		kw := &keepaliveWriter{ResponseWriter: w}
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-r.Context().Done():
					return
				case <-ticker.C:
					if !kw.ping() {
						return
					}
				}
			}
		}()

		handler.ServeHTTP(kw, r)
		close(done)
		wg.Wait()
	})
}
