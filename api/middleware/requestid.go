package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/irsalhamdi/enrol-cart/api/web"
)

const (
	RequestIDHeader = "X-Request-Id"

	maxRequestIDLen = 128
)

type ctxKey int

const requestIDKey ctxKey = 1

// RequestID tags the request with the id sent by the client, or a new one,
// and echoes it in the response headers.
func RequestID() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			id := r.Header.Get(RequestIDHeader)
			switch {
			case id == "":
				id = uuid.NewString()
			case len(id) > maxRequestIDLen:
				id = id[:maxRequestIDLen]
			}

			w.Header().Set(RequestIDHeader, id)
			return handler(context.WithValue(ctx, requestIDKey, id), w, r)
		}
		return h
	}
	return m
}

func ContextRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
