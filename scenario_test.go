package dynamic_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dynamic"
)

func do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func newRequest(t *testing.T, method, url string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	return req
}

func TestScenario_SingleHandler(t *testing.T) {
	reg := dynamic.New(dynamic.WithHandlers(dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		if r.URL.Query().Get("name") == "lanbomo" {
			w.Write([]byte("hello!"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("404 not found"))
	})))

	server := httptest.NewServer(reg.Handle()(nil))
	defer server.Close()

	status, body := do(t, newRequest(t, http.MethodGet, server.URL+"/", nil))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "404 not found", body)

	status, body = do(t, newRequest(t, http.MethodGet, server.URL+"/index?name=lanbomo", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hello!", body)
}

func TestScenario_AuthThenRouter(t *testing.T) {
	auth := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		if r.Header.Get("Authorization") == "Basic" {
			next(nil)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorization"))
	})

	router := http.NewServeMux()
	router.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("world"))
	})
	router.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{
			"succeed": r.Header.Get("Content-Type") == "application/json",
		})
	})

	reg := dynamic.New(dynamic.WithHandlers(auth, dynamic.HTTP(router)))
	server := httptest.NewServer(reg.Handle()(nil))
	defer server.Close()

	status, body := do(t, newRequest(t, http.MethodGet, server.URL+"/", nil))
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthorization", body)

	req := newRequest(t, http.MethodGet, server.URL+"/hello", nil)
	req.Header.Set("Authorization", "Basic")
	status, body = do(t, req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "world", body)

	req = newRequest(t, http.MethodPost, server.URL+"/submit", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Basic")
	req.Header.Set("Content-Type", "application/json")
	status, body = do(t, req)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"succeed": true}`, body)
}

func TestScenario_UseAffectsLaterRequests(t *testing.T) {
	get := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		if r.Method == http.MethodGet {
			w.Write([]byte("get"))
			return
		}
		next(nil)
	})
	post := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		if r.Method == http.MethodPost {
			w.Write([]byte("post"))
			return
		}
		next(nil)
	})

	reg := dynamic.New(dynamic.WithHandlers(get))
	server := httptest.NewServer(reg.Handle()(nil))
	defer server.Close()

	status, body := do(t, newRequest(t, http.MethodGet, server.URL+"/", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "get", body)

	status, _ = do(t, newRequest(t, http.MethodPost, server.URL+"/", nil))
	require.Equal(t, http.StatusNotFound, status)

	reg.Use(post)

	status, body = do(t, newRequest(t, http.MethodPost, server.URL+"/", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "post", body)

	status, body = do(t, newRequest(t, http.MethodGet, server.URL+"/", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "get", body)

	// Removing the handler falls through to the host's 404 again.
	reg.Unuse(post)

	status, _ = do(t, newRequest(t, http.MethodPost, server.URL+"/", nil))
	require.Equal(t, http.StatusNotFound, status)
}

func TestScenario_WriteThenError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	var laterRan atomic.Bool
	fail := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		w.Write([]byte("written before failing"))
		next(errors.New("database unavailable"))
	})
	later := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		laterRan.Store(true)
		next(nil)
	})

	var hostRan atomic.Bool
	host := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hostRan.Store(true)
	})

	reg := dynamic.New(dynamic.WithLogger(logger), dynamic.WithHandlers(fail, later))
	server := httptest.NewServer(reg.Handle()(host))

	status, body := do(t, newRequest(t, http.MethodGet, server.URL+"/", nil))
	// Close waits for the handler to return, so the log is complete.
	server.Close()

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "written before failing", body)
	require.False(t, laterRan.Load())
	require.False(t, hostRan.Load())

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	require.Equal(t, "ERROR", record["level"])
	require.Equal(t, "dynamic: handler failed", record["msg"])
	require.Equal(t, "database unavailable", record["error"])
}

func TestScenario_GorillaRouterFallsThrough(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("world"))
	}).Methods(http.MethodGet)
	// Unmatched requests write nothing, so the next handler runs.
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	fallback := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
		w.Write([]byte("fallback"))
	})

	reg := dynamic.New(dynamic.WithHandlers(dynamic.HTTP(router), fallback))
	server := httptest.NewServer(reg.Handle()(nil))
	defer server.Close()

	_, body := do(t, newRequest(t, http.MethodGet, server.URL+"/hello", nil))
	require.Equal(t, "world", body)

	_, body = do(t, newRequest(t, http.MethodGet, server.URL+"/other", nil))
	require.Equal(t, "fallback", body)

	reg.Unuse(dynamic.HTTP(router))

	_, body = do(t, newRequest(t, http.MethodGet, server.URL+"/hello", nil))
	require.Equal(t, "fallback", body)
}
