package httpapi

import (
	"bytes"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IdempotencyKeyHeader is the request header naming a retry-safe POST.
const IdempotencyKeyHeader = "Idempotency-Key"

const replayedHeader = "Idempotent-Replayed"

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	w.body.Write(p)

	return w.ResponseWriter.Write(p)
}

// idempotency replays the first response to a POST with the same key, path and method.
// Conflicts and server errors are not cached so that the client can retry them.
func idempotency(cache *lru.Cache[string, cachedResponse]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := r.Method + " " + r.URL.Path + " " + key

			if cached, found := cache.Get(cacheKey); found {
				if cached.contentType != "" {
					w.Header().Set("Content-Type", cached.contentType)
				}

				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(cached.status)
				_, _ = w.Write(cached.body)

				return
			}

			recorder := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			if recorder.status == 0 || recorder.status == http.StatusConflict || recorder.status >= http.StatusInternalServerError {
				return
			}

			cache.Add(cacheKey, cachedResponse{
				status:      recorder.status,
				contentType: recorder.Header().Get("Content-Type"),
				body:        recorder.body.Bytes(),
			})
		})
	}
}
