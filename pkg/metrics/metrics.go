package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	GraphRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "graph_requests",
		Namespace: "spdocs",
		Help:      "number of requests made to the Microsoft Graph API",
	})
	GraphRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "graph_retries",
		Namespace: "spdocs",
		Help:      "number of Graph API requests that were retried",
	})
	DocumentsListed = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "documents_listed",
		Namespace: "spdocs",
		Help:      "number of documents returned to callers",
	})
	ListingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "listing_failures",
		Namespace: "spdocs",
		Help:      "number of document listing requests that failed",
	})
)

func init() {
	prometheus.MustRegister(GraphRequests)
	prometheus.MustRegister(GraphRetries)
	prometheus.MustRegister(DocumentsListed)
	prometheus.MustRegister(ListingFailures)
}

func isAlive(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Alive.")
}

func isReady(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Ready.")
}

// Serve health and metric requests forever.
func Serve(addr, metrics, ready, alive string) {
	h := http.NewServeMux()
	h.Handle(metrics, promhttp.Handler())
	h.HandleFunc(ready, isReady)
	h.HandleFunc(alive, isAlive)
	log.Infof("Metrics and status server started on %s", addr)
	log.Infof("Serving metrics on %s", metrics)
	log.Infof("Serving readiness check on %s", ready)
	log.Infof("Serving liveness check on %s", alive)
	log.Info(http.ListenAndServe(addr, h))
}
