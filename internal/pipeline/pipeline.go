// Package pipeline implements the webhook decoding pipeline: slug
// resolution, decoder execution, normalization, persistence, and the audit
// trail around every outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ariot.dev/platform/internal/decoder"
	"ariot.dev/platform/internal/store"
	"ariot.dev/platform/pkg/metrics"
)

// Outcome is the terminal state of one webhook payload.
type Outcome string

// Terminal outcomes. Processed and WaitingLocation both mean a measurement
// row was written; the rest write no measurement.
const (
	OutcomeProcessed       Outcome = "processed"
	OutcomeWaitingLocation Outcome = "waiting_location"
	OutcomeNoIntegration   Outcome = "no_integration"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeDecodeFailed    Outcome = "decode_failed"
	OutcomeSystemError     Outcome = "system_error"
)

// Result describes how the pipeline terminated for one payload.
type Result struct {
	// Outcome is the terminal state.
	Outcome Outcome
	// Slug is the integration that handled the payload; empty when no
	// default integration could be resolved.
	Slug string
	// Measurement is the stored record on the success outcomes, nil otherwise.
	Measurement *store.Measurement
	// Err carries the underlying failure for the error outcomes.
	Err error
}

// Stored reports whether a measurement row was written.
func (r Result) Stored() bool {
	return r.Outcome == OutcomeProcessed || r.Outcome == OutcomeWaitingLocation
}

// Config holds the configuration for the Pipeline.
type Config struct {
	Logger *slog.Logger
	Store  *store.Store
	// DecoderTimeout bounds a single script invocation
	// (decoder.DefaultTimeout when zero).
	DecoderTimeout time.Duration
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.PipelineMetrics
}

// Pipeline runs the webhook decoding state machine. Requests are processed
// independently; the pipeline itself holds no mutable state, so one instance
// serves all concurrent webhook and queue deliveries.
type Pipeline struct {
	logger         *slog.Logger
	store          *store.Store
	decoderTimeout time.Duration
	metrics        *metrics.PipelineMetrics
}

// New creates a Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	timeout := cfg.DecoderTimeout
	if timeout <= 0 {
		timeout = decoder.DefaultTimeout
	}

	return &Pipeline{
		logger:         cfg.Logger,
		store:          cfg.Store,
		decoderTimeout: timeout,
		metrics:        cfg.Metrics,
	}, nil
}

// Process runs one payload through the full state machine. slug may be empty,
// in which case the default integration is resolved first. The audit entry
// for the terminal state is always written before Process returns, so the
// caller can respond (or drop the connection) without losing observability.
func (p *Pipeline) Process(ctx context.Context, slug string, rawPayload []byte) Result {
	payload := parsePayload(rawPayload)

	// ResolveSlug
	if slug == "" {
		resolved, err := p.store.ResolveDefaultSlug(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				p.audit(ctx, store.LevelWarn, "Root Webhook Hit but No Default Integration Found",
					map[string]any{"payload": payload})
				return p.finish(Result{Outcome: OutcomeNoIntegration})
			}
			p.audit(ctx, store.LevelError, "System Error",
				map[string]any{"payload": payload, "error": err.Error()})
			return p.finish(Result{Outcome: OutcomeSystemError, Err: err})
		}
		slug = resolved
	}

	details := map[string]any{"slug": slug, "payload": payload}

	// LoadScript
	script, err := p.store.FindDecoderScript(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.audit(ctx, store.LevelWarn, "Endpoint Not Found", details)
			return p.finish(Result{Outcome: OutcomeNotFound, Slug: slug})
		}
		p.audit(ctx, store.LevelError, "System Error",
			withDetail(details, "error", err.Error()))
		return p.finish(Result{Outcome: OutcomeSystemError, Slug: slug, Err: err})
	}

	// Compile/Invoke
	decoded, err := p.decode(slug, script, payload)
	if err != nil {
		p.audit(ctx, store.LevelError, "Decoder Script Failed",
			withDetail(details, "error", err.Error()))
		return p.finish(Result{Outcome: OutcomeDecodeFailed, Slug: slug, Err: err})
	}

	// Normalize: cannot fail, every canonical field has a fallback.
	measurement := Normalize(decoded)

	// Persist. Records without coordinates are stored too: drive-test
	// ingestion acquires location after the first uplinks arrive.
	if err := p.store.InsertMeasurement(ctx, measurement); err != nil {
		p.audit(ctx, store.LevelError, "System Error",
			withDetail(details, "error", err.Error()))
		return p.finish(Result{Outcome: OutcomeSystemError, Slug: slug, Err: err})
	}

	located := measurement.Latitude != nil && measurement.Longitude != nil
	if p.metrics != nil {
		locatedLabel := "no"
		if located {
			locatedLabel = "yes"
		}
		p.metrics.MeasurementsStored.WithLabelValues(slug, locatedLabel).Inc()
	}

	// LogOutcome
	details = withDetail(details, "parsed", decoded)
	if located {
		p.audit(ctx, store.LevelInfo, "Data Processed Successfully", details)
		return p.finish(Result{Outcome: OutcomeProcessed, Slug: slug, Measurement: measurement})
	}
	p.audit(ctx, store.LevelInfo, "Data Received (Waiting for Location Fix)", details)
	return p.finish(Result{Outcome: OutcomeWaitingLocation, Slug: slug, Measurement: measurement})
}

// decode compiles and invokes the decoder script under the pipeline's time
// budget. Compile and runtime failures surface identically.
func (p *Pipeline) decode(slug, script string, payload any) (map[string]any, error) {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.DecodeDuration.WithLabelValues(slug))
		defer timer.ObserveDuration()
	}

	compiled, err := decoder.Compile(script)
	if err != nil {
		p.trackDecodeFailure(slug, err)
		return nil, err
	}

	decoded, err := compiled.Invoke(payload, p.decoderTimeout)
	if err != nil {
		p.trackDecodeFailure(slug, err)
		return nil, err
	}
	return decoded, nil
}

func (p *Pipeline) trackDecodeFailure(slug string, err error) {
	if p.metrics == nil {
		return
	}
	stage := decoder.StageRuntime
	if decodeErr, ok := decoder.AsError(err); ok {
		stage = decodeErr.Stage
	}
	p.metrics.DecodeFailures.WithLabelValues(slug, stage).Inc()
}

// audit writes one system_logs entry. A failed audit write never alters the
// pipeline outcome; it is logged and counted instead.
func (p *Pipeline) audit(ctx context.Context, level, message string, details map[string]any) {
	if err := p.store.AppendSystemLog(ctx, store.SourceWebhook, level, message, details); err != nil {
		p.logger.Error("audit log write failed",
			"level", level,
			"message", message,
			"error", err,
		)
	}
}

func (p *Pipeline) finish(result Result) Result {
	if p.metrics != nil {
		slug := result.Slug
		if slug == "" {
			slug = "(root)"
		}
		p.metrics.RequestsTotal.WithLabelValues(slug, string(result.Outcome)).Inc()
	}

	switch result.Outcome {
	case OutcomeProcessed, OutcomeWaitingLocation:
		p.logger.Info("webhook payload stored",
			"slug", result.Slug,
			"outcome", result.Outcome,
		)
	case OutcomeDecodeFailed, OutcomeSystemError:
		p.logger.Error("webhook payload failed",
			"slug", result.Slug,
			"outcome", result.Outcome,
			"error", result.Err,
		)
	default:
		p.logger.Warn("webhook payload rejected",
			"slug", result.Slug,
			"outcome", result.Outcome,
		)
	}
	return result
}

// parsePayload decodes the raw request body. Bodies that are not valid JSON
// are handed to the decoder as a raw string so operator scripts can still
// inspect them; the audit trail keeps the same value for forensic replay.
func parsePayload(raw []byte) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	return value
}

// withDetail returns a copy of details with one extra key, leaving the
// original map untouched for earlier audit entries.
func withDetail(details map[string]any, key string, value any) map[string]any {
	next := make(map[string]any, len(details)+1)
	for k, v := range details {
		next[k] = v
	}
	next[key] = value
	return next
}
