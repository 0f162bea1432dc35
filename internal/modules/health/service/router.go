package service

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	reconsvc "trade_terminal/internal/modules/reconciler/service"
)

// Snapshotter: сводка состояния терминала для /state.
type Snapshotter interface {
	Snapshot() reconsvc.Snapshot
}

func NewRouter(state *State, src Snapshotter) http.Handler {
	r := chi.NewRouter()

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"ready":     state.Ready(),
			"session":   state.Session().String(),
			"uptimeSec": int64(state.Uptime().Seconds()),
			"lastQuoteUnix": func() int64 {
				t := state.LastQuote()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		writeJSON(w, resp)
	})

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
