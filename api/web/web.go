// Package web holds the handler shape shared by every route.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler is an http handler returning its error to the middleware chain
// instead of writing it.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

type Middleware func(Handler) Handler

const maxBodyBytes = 1 << 20

// WrapMiddleware wraps h so that mw[0] runs first. Nil middlewares are skipped.
func WrapMiddleware(mw []Middleware, h Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] == nil {
			continue
		}
		h = mw[i](h)
	}
	return h
}

// Respond writes data as JSON. A 204 writes no body.
func Respond(ctx context.Context, w http.ResponseWriter, data any, status int) error {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// Decode reads a single JSON value from the request body into val. Unknown
// fields and trailing data are rejected.
func Decode(w http.ResponseWriter, r *http.Request, val any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(val); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("body must hold a single JSON value")
	}
	return nil
}

// Param returns the path variable key of the matched route.
func Param(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}
