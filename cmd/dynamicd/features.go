package main

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jpl-au/dynamic"
)

// feature is a named handler that can be switched on and off at runtime.
type feature struct {
	name  string
	serve dynamic.HandlerFunc
}

func (f *feature) ServeNext(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
	f.serve(w, r, next)
}

var features = map[string]*feature{
	"request-id":  {name: "request-id", serve: requestID},
	"auth":        {name: "auth", serve: basicAuth},
	"maintenance": {name: "maintenance", serve: maintenance},
}

// requestID tags the response with a unique request id.
func requestID(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", id)
	next(nil)
}

func basicAuth(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
	if r.Header.Get("Authorization") == "Basic" {
		next(nil)
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte("Unauthorization"))
}

func maintenance(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
	w.Header().Set("Retry-After", "120")
	http.Error(w, "service under maintenance", http.StatusServiceUnavailable)
}
