package prometheus

import (
	"net/http"

	"camphub/event-relay/config"
	h "camphub/event-relay/http"
	"camphub/event-relay/log"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func StartHttpServer(cfg *config.Config, db h.Pinger) {
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/healthz", h.NewHealthzHandler(cfg.GetDependencySystemAddresses(), db))

	err := http.ListenAndServe(":80", nil)
	if err != nil {
		log.Logger.Fatalf("failed to start prometheus HTTP server: %s", err)
	}
}
