package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Logger writes one access log entry per request once it has been answered.
// Server errors are logged at warn level, everything else at info.
func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			entry := log.WithFields(logrus.Fields{
				"req_id":   ContextRequestID(ctx),
				"method":   r.Method,
				"path":     r.URL.Path,
				"remote":   r.RemoteAddr,
				"status":   lw.Status(),
				"bytes":    lw.BytesWritten(),
				"duration": time.Since(start).String(),
			})
			if lw.Status() >= http.StatusInternalServerError {
				entry.Warn("request served")
			} else {
				entry.Info("request served")
			}
			return err
		}
		return h
	}
	return m
}
