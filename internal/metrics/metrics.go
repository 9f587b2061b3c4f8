// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinkeeper_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "code"})

	MilkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinkeeper_milk_writes_total",
		Help: "Milk ledger writes by kind (upsert, delete, day_delete).",
	}, []string{"kind"})

	CategorizeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinkeeper_categorize_results_total",
		Help: "Expense categorization results by source (remote, keyword, default).",
	}, []string{"source"})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kinkeeper_live_subscribers",
		Help: "Connected WebSocket subscribers.",
	})

	PushSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinkeeper_push_sends_total",
		Help: "Web push deliveries by result (sent, expired, failed, dropped).",
	}, []string{"result"})

	BackupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinkeeper_backup_runs_total",
		Help: "Database backups by result (ok, failed).",
	}, []string{"result"})
)

// ObserveRequest counts one finished HTTP request.
func ObserveRequest(method string, status int) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
