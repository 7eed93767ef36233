package observability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/models"
)

// SlowQueryDetector logs chat messages whose processing crosses the warning
// threshold and ships them to the analytics store.
type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error
}

// SlowSample describes one processed message.
type SlowSample struct {
	Message  string
	Intent   string
	Duration time.Duration
	Products int
	Steps    int
	TimedOut bool
	Source   string
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

func (sqd *SlowQueryDetector) Intercept(ctx context.Context, s SlowSample) {
	if s.Duration <= sqd.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := sqd.classifySeverity(s.Duration)
	hash := hashQueryForLog(s.Message)

	SlowQueryCounter.WithLabelValues(severity, s.Intent).Inc()

	sqd.logger.Warn("slow chat message",
		zap.String("trace_id", traceID),
		zap.String("message_hash", hash),
		zap.String("intent", s.Intent),
		zap.Float64("duration_ms", float64(s.Duration.Milliseconds())),
		zap.Int("products", s.Products),
		zap.Int("ladder_steps", s.Steps),
		zap.Bool("timed_out", s.TimedOut),
		zap.String("severity", severity),
	)

	if sqd.analyticsWriter == nil {
		return
	}
	event := &models.AnalyticsEvent{
		EventType:  "query_performance",
		QueryHash:  hash,
		QueryType:  s.Intent,
		DurationMs: float64(s.Duration.Milliseconds()),
		TotalHits:  int64(s.Products),
		Steps:      s.Steps,
		TimedOut:   s.TimedOut,
		Timestamp:  time.Now().UTC(),
		TraceID:    traceID,
		Source:     s.Source,
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqd.analyticsWriter.WriteQueryPerformance(writeCtx, event); err != nil {
			sqd.logger.Error("failed to write query analytics",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}()
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	if d > sqd.criticalThreshold {
		return "critical"
	}
	if d > sqd.warningThreshold {
		return "warning"
	}
	return "normal"
}

// hashQueryForLog keeps raw customer text out of logs.
func hashQueryForLog(q string) string {
	return fmt.Sprintf("%016x", hashUint64(q))
}

func hashUint64(s string) uint64 {
	h := uint64(0)
	for _, c := range s {
		h = h*31 + uint64(c)
	}
	return h
}
