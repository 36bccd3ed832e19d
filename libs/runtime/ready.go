package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck names one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const probeTimeout = 2 * time.Second

// NewBaseMuxWithReady returns a mux preloaded with /healthz (always ok) and
// /readyz (503 with the failing dependency names while any check fails).
// Services mount their routes on top of it.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := probe(r.Context(), checks); len(failures) > 0 {
			http.Error(w, strings.Join(failures, "; "), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func probe(ctx context.Context, checks []ReadyCheck) []string {
	var failures []string
	for _, c := range checks {
		if c.Check == nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Check(probeCtx)
		cancel()
		if err == nil {
			continue
		}
		name := c.Name
		if name == "" {
			name = "dependency"
		}
		failures = append(failures, name+": "+err.Error())
	}
	return failures
}
