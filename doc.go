// Package dynamic provides an HTTP middleware stage whose handlers can be
// changed while the server is running.
//
// A [Registry] holds an ordered list of handlers. [Registry.Handle] turns it
// into a standard middleware that is installed once; handlers are then added,
// removed and cleared at any time without rebuilding the pipeline.
//
// # Basic Usage
//
//	reg := dynamic.New(dynamic.WithHandlers(auth))
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /hello", helloHandler)
//	http.ListenAndServe(":8080", reg.Handle()(mux))
//
//	// later, from any goroutine
//	reg.Use(rateLimit)
//	reg.Unuse(auth)
//
// # Handlers
//
// A [Handler] receives the request, the response writer and a [Next]
// continuation:
//
//	auth := dynamic.Func(func(w http.ResponseWriter, r *http.Request, next dynamic.Next) {
//		if r.Header.Get("Authorization") != "Basic" {
//			http.Error(w, "Unauthorization", http.StatusUnauthorized)
//			return
//		}
//		next(nil)
//	})
//
// Handlers run one after another in registration order. A handler that writes
// a response and returns without calling next ends the request there. Calling
// next(err) aborts the remaining handlers. A handler that returns without
// writing or calling next may finish asynchronously by calling next later
// from another goroutine; one that writes its response from there reports it
// with next(ErrHandled). Until next is called the pass keeps waiting.
//
// Standard handlers and middleware join a registry through [HTTP],
// [HTTPFunc] and [Middleware].
//
// # Passes
//
// Each request runs a pass over the handlers registered at the moment it
// starts. Changes made while a pass is running apply to the next request.
//
// # Errors
//
// A pass aborted by an error is logged through the registry's [log/slog]
// logger and the next stage of the pipeline is not called. The request is
// left with whatever the handlers wrote. [WithErrorForwarding] hands the
// error to an [ErrorHandler] instead, and [WithTimeout] bounds how long a
// pass waits for a handler that has not completed. A handler the pass gave up
// on can no longer write to the response.
package dynamic
