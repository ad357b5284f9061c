// Package middleware holds the net/http middleware wrapped around the
// resource routes.
package middleware

import (
	"net/http"

	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metrics"
)

const panicLocation = "PanicRecovery"

// PanicRecovery turns a panicking handler into a 500 response. The panic is
// logged with its stack and reported to the error tracker; the client only
// sees a generic message.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rcv := recover()
			if rcv == nil {
				return
			}
			if rcv == http.ErrAbortHandler {
				panic(rcv)
			}
			metrics.GetProvider().RecordPanic(panicLocation)
			_ = logger.HandlePanic(panicLocation+" "+r.Method+" "+r.URL.Path, rcv)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"errorMessage":"` + message + `"}`))
}
