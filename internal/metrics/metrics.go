// Package metrics exposes Prometheus counters and histograms for the
// attendance engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the narrow interface orchestrators use to report outcomes.
type Recorder interface {
	RecordRosterSave(changed int)
	RecordRelocation(moved int)
	RecordVersionConflict(op string)
}

// Collector is the Prometheus implementation of Recorder. It also observes
// database and HTTP timings.
type Collector struct {
	rosterSaves      prometheus.Counter
	recordsUpserted  prometheus.Counter
	relocations      prometheus.Counter
	recordsRelocated prometheus.Counter
	versionConflicts *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	requestDuration  *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rosterSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chapel_roster_saves_total",
			Help: "Number of committed roster saves.",
		}),
		recordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chapel_records_upserted_total",
			Help: "Attendance rows inserted or changed by roster saves.",
		}),
		relocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chapel_relocations_total",
			Help: "Number of committed bucket relocations.",
		}),
		recordsRelocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chapel_records_relocated_total",
			Help: "Attendance rows written into destination buckets.",
		}),
		versionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chapel_version_conflicts_total",
			Help: "Writes rejected because the bucket version moved.",
		}, []string{"op"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chapel_db_query_duration_seconds",
			Help:    "Database call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chapel_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.rosterSaves,
		c.recordsUpserted,
		c.relocations,
		c.recordsRelocated,
		c.versionConflicts,
		c.queryDuration,
		c.requestDuration,
	)
	return c
}

// RecordRosterSave counts one committed save and the rows it changed.
func (c *Collector) RecordRosterSave(changed int) {
	c.rosterSaves.Inc()
	c.recordsUpserted.Add(float64(changed))
}

// RecordRelocation counts one committed relocation and the rows it wrote.
func (c *Collector) RecordRelocation(moved int) {
	c.relocations.Inc()
	c.recordsRelocated.Add(float64(moved))
}

// RecordVersionConflict counts a stale-version rejection.
func (c *Collector) RecordVersionConflict(op string) {
	c.versionConflicts.WithLabelValues(op).Inc()
}

// ObserveQuery records one database call.
func (c *Collector) ObserveQuery(op string, d time.Duration) {
	c.queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where no registry is wired.
type Nop struct{}

func (Nop) RecordRosterSave(int)                {}
func (Nop) RecordRelocation(int)                {}
func (Nop) RecordVersionConflict(string)        {}
func (Nop) ObserveQuery(string, time.Duration) {}
