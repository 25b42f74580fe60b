package stats

import (
	"net/http"
	"strconv"
	"sync"

	metrics "github.com/rcrowley/go-metrics"
)

type httpHandler struct {
	registry metrics.Registry
	delegate http.Handler

	timer metrics.Timer

	codes    map[int]metrics.Counter
	codesMtx sync.RWMutex
}

// NewStatHandler returns an http handler that records the time of every
// request and a counter per response code in the go-metrics registry set
// with WithRegistry.
func NewStatHandler(handler http.Handler, opts ...Option) http.Handler {
	o := newOptions(opts)
	return &httpHandler{
		registry: o.registry,
		delegate: handler,
		timer:    metrics.GetOrRegisterTimer(httpRequestTime, o.registry),
		codes:    map[int]metrics.Counter{},
	}
}

func (h *httpHandler) counter(code int) metrics.Counter {
	h.codesMtx.RLock()
	c := h.codes[code]
	h.codesMtx.RUnlock()

	if c != nil {
		return c
	}

	h.codesMtx.Lock()
	if c = h.codes[code]; c == nil {
		c = metrics.GetOrRegisterCounter(httpCodePrefix+strconv.Itoa(code), h.registry)
		h.codes[code] = c
	}
	h.codesMtx.Unlock()

	return c
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.timer.Time(func() {
		rw := &responseWriter{ResponseWriter: w, handler: h}
		h.delegate.ServeHTTP(rw, r)
		if !rw.headerWritten {
			// nothing written, net/http replies 200
			rw.WriteHeader(http.StatusOK)
		}
	})
}

type responseWriter struct {
	http.ResponseWriter

	headerWritten bool
	handler       *httpHandler
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}

	rw.headerWritten = true
	rw.handler.counter(code).Inc(1)
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var (
	_ http.Handler        = (*httpHandler)(nil)
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
)
