// Package telemetry records HTTP and AI-provider metrics in process and
// serves them in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Duration buckets in seconds. AI calls routinely take several seconds, so
// the upper buckets reach past the default AI_TIMEOUT.
var (
	httpDurationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	aiDurationBuckets   = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
)

// histogram is a thread-safe histogram. Bucket counts are stored
// non-cumulative and accumulated at export time.
type histogram struct {
	boundaries   []float64
	mu           sync.Mutex
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits, updated by CAS
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		if atomic.CompareAndSwapUint64(&h.sum, old, math.Float64bits(math.Float64frombits(old)+v)) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

// histogramVec holds one histogram per label set.
type histogramVec struct {
	boundaries []float64
	mu         sync.RWMutex
	items      map[string]*histogram
}

func newHistogramVec(boundaries []float64) *histogramVec {
	return &histogramVec{boundaries: boundaries, items: make(map[string]*histogram)}
}

func (v *histogramVec) with(key string) *histogram {
	v.mu.RLock()
	h, ok := v.items[key]
	v.mu.RUnlock()
	if ok {
		return h
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if h, ok = v.items[key]; !ok {
		h = newHistogram(v.boundaries)
		v.items[key] = h
	}
	return h
}

func (v *histogramVec) get(key string) *histogram {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.items[key]
}

func (v *histogramVec) sortedKeys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.items))
	for k := range v.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// counterVec holds one counter per label set.
type counterVec struct {
	mu    sync.Mutex
	items map[string]int64
}

func newCounterVec() *counterVec {
	return &counterVec{items: make(map[string]int64)}
}

func (v *counterVec) inc(key string) {
	v.mu.Lock()
	v.items[key]++
	v.mu.Unlock()
}

func (v *counterVec) get(key string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.items[key]
}

func (v *counterVec) snapshot() ([]string, map[string]int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := make(map[string]int64, len(v.items))
	keys := make([]string, 0, len(v.items))
	for k, n := range v.items {
		cp[k] = n
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, cp
}

// LabelsKey builds the key of an HTTP series. Exported so tests can
// construct the same key.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

// Provider collects the metrics of one process. It implements
// ai.Observer, so a Gateway can report each provider call to it.
type Provider struct {
	service string
	version string

	activeRequests int64
	httpDuration   *histogramVec
	aiDuration     *histogramVec
	aiRequests     *counterVec
}

func NewProvider(service, version string) *Provider {
	if service == "" {
		service = "ehr-agent"
	}
	return &Provider{
		service:      service,
		version:      version,
		httpDuration: newHistogramVec(httpDurationBuckets),
		aiDuration:   newHistogramVec(aiDurationBuckets),
		aiRequests:   newCounterVec(),
	}
}

// ObserveAIRequest records one AI provider call by outcome ("ok" or a
// failure kind).
func (p *Provider) ObserveAIRequest(outcome string, latency time.Duration) {
	p.aiRequests.inc(outcome)
	p.aiDuration.with(outcome).Observe(latency.Seconds())
}

// AIRequests returns the number of AI calls recorded with outcome.
func (p *Provider) AIRequests(outcome string) int64 {
	return p.aiRequests.get(outcome)
}

// RequestCount returns the number of HTTP requests recorded for the series.
func (p *Provider) RequestCount(method, route, statusCode string) int64 {
	h := p.httpDuration.get(LabelsKey(method, route, statusCode))
	if h == nil {
		return 0
	}
	return h.Count()
}

// Middleware records the duration of every request under its route pattern.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.activeRequests, 1)
			defer atomic.AddInt64(&p.activeRequests, -1)

			start := time.Now()
			err := next(c)

			// errors are rendered by the outer error handler, so derive the
			// status it will write
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			p.httpDuration.with(LabelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// PrometheusHandler serves all metrics at /metrics.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		b.WriteString("# HELP ehr_agent_info Build information.\n")
		b.WriteString("# TYPE ehr_agent_info gauge\n")
		fmt.Fprintf(&b, "ehr_agent_info{service=%q,version=%q} 1\n\n", p.service, p.version)

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&p.activeRequests))

		writeHistogramVec(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", p.httpDuration,
			func(key string) string {
				parts := strings.SplitN(key, "|", 3)
				return fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			})

		b.WriteString("# HELP ai_requests_total AI provider calls by outcome.\n")
		b.WriteString("# TYPE ai_requests_total counter\n")
		keys, counts := p.aiRequests.snapshot()
		for _, k := range keys {
			fmt.Fprintf(&b, "ai_requests_total{outcome=%q} %d\n", k, counts[k])
		}
		b.WriteByte('\n')

		writeHistogramVec(&b, "ai_request_duration_seconds",
			"Latency of AI provider calls in seconds.", p.aiDuration,
			func(key string) string { return fmt.Sprintf("outcome=%q", key) })

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistogramVec(b *strings.Builder, name, help string, v *histogramVec, labels func(string) string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	for _, key := range v.sortedKeys() {
		h := v.get(key)
		l := labels(key)
		cum := h.cumulativeBuckets()
		for i, boundary := range v.boundaries {
			fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, l, boundary, cum[i])
		}
		fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, l, h.Count())
		fmt.Fprintf(b, "%s_sum{%s} %g\n", name, l, h.Sum())
		fmt.Fprintf(b, "%s_count{%s} %d\n", name, l, h.Count())
	}
	b.WriteByte('\n')
}
