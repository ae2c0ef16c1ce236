package metrics

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	filesProcessedTotal atomic.Uint64
	filesFailedTotal    atomic.Uint64
	autoMatchedTotal    atomic.Uint64
	manualReviewTotal   atomic.Uint64

	quotaUsedPercentBits atomic.Uint64

	fileDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncFileProcessed increments the processed-files counter.
func IncFileProcessed() {
	filesProcessedTotal.Add(1)
}

// IncFileFailed increments the failed-files counter.
func IncFileFailed() {
	filesFailedTotal.Add(1)
}

// IncAutoMatched increments the auto-matched documents counter.
func IncAutoMatched() {
	autoMatchedTotal.Add(1)
}

// IncManualReview increments the manual-review documents counter.
func IncManualReview() {
	manualReviewTotal.Add(1)
}

// SetQuotaUsedPercent records the latest storage usage gauge.
func SetQuotaUsedPercent(value float64) {
	quotaUsedPercentBits.Store(math.Float64bits(value))
}

// ObserveFileDurationMs records one file's pipeline duration in milliseconds.
func ObserveFileDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	fileDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "intake_files_processed_total", "Total files processed by the intake pipeline", filesProcessedTotal.Load())
	writeCounter(&buf, "intake_files_failed_total", "Total files that failed in the intake pipeline", filesFailedTotal.Load())
	writeCounter(&buf, "intake_documents_auto_matched_total", "Total documents matched automatically", autoMatchedTotal.Load())
	writeCounter(&buf, "intake_documents_manual_review_total", "Total documents routed to manual review", manualReviewTotal.Load())
	writeGauge(&buf, "storage_quota_used_percent", "Storage quota usage percentage", math.Float64frombits(quotaUsedPercentBits.Load()))
	writeHistogram(&buf, "intake_file_duration_ms", "Per-file pipeline duration in milliseconds", fileDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// counts are per bucket; rendering accumulates them into the
	// cumulative le series.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value float64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %s\n", name, formatFloat(value))
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
