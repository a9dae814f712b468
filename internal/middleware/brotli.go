package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliMinLength is the smallest body worth compressing.
const BrotliMinLength = 1024

// brotliWriter holds the body back until BrotliMinLength bytes are known,
// then commits to either the brotli stream or the plain one.
type brotliWriter struct {
	gin.ResponseWriter
	enc        *brotli.Writer
	pending    []byte
	minLength  int
	compressed bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.compressed {
		return w.enc.Write(data)
	}

	w.pending = append(w.pending, data...)
	if len(w.pending) < w.minLength {
		return len(data), nil
	}

	if !compressible(w.Header().Get("Content-Type")) {
		if err := w.passThrough(); err != nil {
			return 0, err
		}
		return len(data), nil
	}

	w.compressed = true
	w.Header().Set("Content-Encoding", "br")
	w.Header().Del("Content-Length")
	if _, err := w.enc.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush pushes pending bytes through whichever encoding is already chosen.
func (w *brotliWriter) Flush() {
	if w.compressed {
		_ = w.enc.Flush()
	} else {
		_ = w.passThrough()
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) passThrough() error {
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	w.pending = nil
	w.minLength = 0
	return err
}

func (w *brotliWriter) finish() error {
	if w.compressed {
		return w.enc.Close()
	}
	return w.passThrough()
}

// Brotli compresses JSON and text responses of at least BrotliMinLength bytes
// for clients that accept "br". Event streams and WebSocket upgrades pass
// through untouched.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isStreaming(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		w := &brotliWriter{
			ResponseWriter: c.Writer,
			enc:            brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
			minLength:      BrotliMinLength,
		}
		c.Writer = w
		defer func() {
			if err := w.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func isStreaming(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "br") {
			return true
		}
	}
	return false
}

func compressible(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "application/json") ||
		strings.HasPrefix(contentType, "text/")
}
