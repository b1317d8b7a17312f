package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Creates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "create_requests_total",
		Help: "Total short URL creations.",
	})
	CreateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "create_failures_total",
		Help: "Rejected creations by error kind.",
	}, []string{"kind"})
	Redirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_requests_total",
		Help: "Total redirect requests.",
	})
	RedirectByCode = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redirect_requests_by_code_total",
		Help: "Redirect requests by code.",
	}, []string{"code"})
	ExpiredHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "expired_requests_total",
		Help: "Redirect requests for lapsed codes.",
	})
	NotFoundHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notfound_requests_total",
		Help: "Redirect requests for unknown codes.",
	})
	ClicksRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_recorded_total",
		Help: "Click events appended to the ledger.",
	})
	AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events dropped due to full buffer.",
	})
)

func init() {
	prometheus.MustRegister(Creates, CreateFailures, Redirects, RedirectByCode, ExpiredHits, NotFoundHits, ClicksRecorded, AuditDropped)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
