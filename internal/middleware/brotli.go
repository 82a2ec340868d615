package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const (
	// brotliQuality 4 keeps compression cheap enough for exam payloads
	// without stalling the request goroutine.
	brotliQuality = 4
	// Responses smaller than this go out uncompressed; the brotli header
	// overhead is not worth it for short JSON envelopes.
	brotliMinLength = 1024
)

// Brotli compresses JSON responses for clients that advertise br support.
// The notification stream is exempt: compressing a hijacked WebSocket
// connection would corrupt the frames.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isNotificationStream(c.Request) || !clientAcceptsBrotli(c.Request) {
			c.Next()
			return
		}

		bw := &brotliResponseWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		bw.finish()
	}
}

// brotliResponseWriter buffers the body until it knows whether the
// response is large enough to be worth compressing.
type brotliResponseWriter struct {
	gin.ResponseWriter
	buf        []byte
	compressor *brotli.Writer
}

func (w *brotliResponseWriter) Write(p []byte) (int, error) {
	if w.compressor != nil {
		return w.compressor.Write(p)
	}
	w.buf = append(w.buf, p...)
	if len(w.buf) >= brotliMinLength {
		w.startCompressing()
	}
	return len(p), nil
}

func (w *brotliResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// startCompressing commits to brotli output: it rewrites the response
// headers and replays the buffered prefix through the compressor.
func (w *brotliResponseWriter) startCompressing() {
	w.ResponseWriter.Header().Del("Content-Length")
	w.ResponseWriter.Header().Set("Content-Encoding", "br")
	w.ResponseWriter.Header().Set("Vary", "Accept-Encoding")
	w.compressor = brotli.NewWriterLevel(w.ResponseWriter, brotliQuality)
	if len(w.buf) > 0 {
		w.compressor.Write(w.buf)
		w.buf = nil
	}
}

// finish flushes the compressor, or writes the small buffered body as-is.
func (w *brotliResponseWriter) finish() {
	if w.compressor != nil {
		w.compressor.Close()
		return
	}
	if len(w.buf) > 0 {
		w.ResponseWriter.Header().Set("Content-Length", strconv.Itoa(len(w.buf)))
		w.ResponseWriter.Write(w.buf)
		w.buf = nil
	}
}

func isNotificationStream(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func clientAcceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.SplitN(enc, ";", 2)[0]) == "br" {
			return true
		}
	}
	return false
}
