package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router serves the debug endpoints. Only mounted when debug mode is on.
func Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", Handler())
	return r
}

// Serve runs the debug listener in the background; errors after startup are
// reported through errFn.
func Serve(addr string, errFn func(error)) {
	go func() {
		if err := http.ListenAndServe(addr, Router()); err != nil && errFn != nil {
			errFn(err)
		}
	}()
}
