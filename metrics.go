package nosqlbench

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the progress of a run to prometheus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	misses   prometheus.Counter
	errors   prometheus.Counter
	latency  prometheus.Histogram
	workers  prometheus.Gauge
	reqPS    prometheus.Gauge
	readPS   prometheus.Gauge
	writePS  prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nosqlbench_requests_total",
			Help: "Requests issued, by request type",
		}, []string{"type"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nosqlbench_misses_total",
			Help: "Requests whose key was not found",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nosqlbench_errors_total",
			Help: "Requests that failed",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nosqlbench_request_latency_seconds",
			Help:    "Latency of completed requests",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 18),
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nosqlbench_workers",
			Help: "Running workers",
		}),
		reqPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nosqlbench_requests_per_second",
			Help: "Requests per second at the last report",
		}),
		readPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nosqlbench_reads_per_second",
			Help: "Reads per second at the last report",
		}),
		writePS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nosqlbench_writes_per_second",
			Help: "Writes per second at the last report",
		}),
	}
	m.registry.MustRegister(m.requests, m.misses, m.errors, m.latency,
		m.workers, m.reqPS, m.readPS, m.writePS)
	return m
}

func (self *Metrics) Request(t RequestType) {
	if self == nil {
		return
	}
	self.requests.WithLabelValues(t.String()).Inc()
}

func (self *Metrics) Miss(count int) {
	if self == nil || count <= 0 {
		return
	}
	self.misses.Add(float64(count))
}

func (self *Metrics) Error() {
	if self == nil {
		return
	}
	self.errors.Inc()
}

func (self *Metrics) Latency(d time.Duration) {
	if self == nil {
		return
	}
	self.latency.Observe(d.Seconds())
}

func (self *Metrics) Report(s Stat) {
	if self == nil {
		return
	}
	self.workers.Set(float64(s.Workers))
	self.reqPS.Set(float64(s.ReqPS))
	self.readPS.Set(float64(s.ReadPS))
	self.writePS.Set(float64(s.WritePS))
}

func (self *Metrics) Registry() *prometheus.Registry {
	return self.registry
}

func (self *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(self.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (self *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", self.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
