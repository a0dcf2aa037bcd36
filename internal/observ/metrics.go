package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	k := canonLabels(labels)
	m[k] += int64(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	k := canonLabels(labels)
	m[k] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// Basic text/JSON dump for quick checks (not Prometheus format on purpose)
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthStatus represents overall engine health
type HealthStatus struct {
	Status    string        `json:"status"`    // "healthy", "degraded", "failed"
	Timestamp string        `json:"timestamp"` // ISO 8601
	Uptime    string        `json:"uptime"`    // Duration since start
	Version   string        `json:"version"`   // Build version
	Metrics   HealthMetrics `json:"metrics"`
}

// HealthMetrics holds the key numbers an operator checks first
type HealthMetrics struct {
	ScanLatencyP95Ms  int64   `json:"scan_latency_p95_ms"`
	ScansTotal        int64   `json:"scans_total"`
	FiresTotal        int64   `json:"fires_total"`
	ExitsTotal        int64   `json:"exits_total"`
	ProviderErrorRate float64 `json:"provider_error_rate"`
	DrawdownPausedNow bool    `json:"drawdown_paused_now"`
	SizeMultiplierNow float64 `json:"size_multiplier_now"`
}

var (
	startTime = time.Now()
	version   = "dev" // Set via build flags
)

// SetVersion sets the version string for health reports
func SetVersion(v string) {
	version = v
}

// HealthHandler serves an aggregate health report built from the registry
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()

		metrics := calculateHealthMetrics()

		status := "healthy"
		if metrics.ProviderErrorRate > 0.5 {
			status = "failed"
		} else if metrics.ProviderErrorRate > 0.1 || metrics.ScanLatencyP95Ms > 5000 {
			status = "degraded"
		}

		health := HealthStatus{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Version:   version,
			Metrics:   metrics,
		}

		statusCode := http.StatusOK
		if health.Status == "failed" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	})
}

// calculateHealthMetrics computes key numbers from raw telemetry.
// Caller must hold reg.mu.
func calculateHealthMetrics() HealthMetrics {
	metrics := HealthMetrics{}

	if samples, exists := reg.hist["scan_latency_ms"]; exists {
		for _, s := range samples {
			if len(s) > 0 {
				metrics.ScanLatencyP95Ms = int64(percentile(s, 0.95))
				break
			}
		}
	}

	metrics.ScansTotal = sumCounter("scans_total")
	metrics.FiresTotal = sumCounter("fires_total")
	metrics.ExitsTotal = sumCounter("position_exits_total")

	requests := sumCounter("provider_requests_total")
	errors := sumCounter("provider_errors_total")
	if requests > 0 {
		metrics.ProviderErrorRate = float64(errors) / float64(requests)
	}

	if paused, exists := reg.gauges["drawdown_paused"]; exists {
		for _, v := range paused {
			metrics.DrawdownPausedNow = v == 1
			break
		}
	}
	if mult, exists := reg.gauges["size_multiplier_current"]; exists {
		for _, v := range mult {
			metrics.SizeMultiplierNow = v
			break
		}
	}

	return metrics
}

func sumCounter(name string) int64 {
	var total int64
	if counts, exists := reg.counters[name]; exists {
		for _, c := range counts {
			total += c
		}
	}
	return total
}

func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Health is a plain liveness endpoint
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
