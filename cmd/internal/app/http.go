package app

import (
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	linkapi "walink/cmd/internal/linking/api"
)

type routes struct {
	log       Logger
	dbPool    *pgxpool.Pool
	metrics   prometheus.Gatherer
	link      *linkapi.Handler
	staticDir string
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rt.dbPool != nil {
			if err := PingDB(r.Context(), rt.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				rt.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(rt.metrics, promhttp.HandlerOpts{}))
	}

	if rt.link != nil {
		rt.link.Register(mux)
	}

	if rt.staticDir != "" {
		if fi, err := os.Stat(rt.staticDir); err == nil && fi.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(rt.staticDir)))
		} else {
			rt.log.Warn("static.disabled", "dir", rt.staticDir, "err", err)
		}
	}
}
