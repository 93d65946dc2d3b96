package provider

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Observer receives the outcome of every generation call.
type Observer interface {
	ObserveGeneration(provider, outcome string, elapsed time.Duration)
}

// Outcome labels reported to Observer.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

type instrumented struct {
	name   string
	next   Provider
	tracer trace.Tracer
	obs    Observer
}

// Instrument wraps p so that each Complete call runs in a span named
// "provider.complete" and is reported to obs. A nil obs is allowed.
func Instrument(p Provider, name string, tracer trace.Tracer, obs Observer) Provider {
	return &instrumented{name: name, next: p, tracer: tracer, obs: obs}
}

func (i *instrumented) ModelName() string { return i.next.ModelName() }

func (i *instrumented) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, span := i.tracer.Start(ctx, "provider.complete", trace.WithAttributes(
		attribute.String("provider.name", i.name),
		attribute.String("provider.model", i.next.ModelName()),
		attribute.Int("request.max_tokens", req.MaxTokens),
	))
	defer span.End()

	start := time.Now()
	resp, err := i.next.Complete(ctx, req)

	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp.Content == "":
		outcome = OutcomeEmpty
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
	default:
		span.SetAttributes(attribute.Int("response.total_tokens", resp.Usage.TotalTokens))
	}
	if i.obs != nil {
		i.obs.ObserveGeneration(i.name, outcome, time.Since(start))
	}
	return resp, err
}

// HealthCheck forwards to the wrapped provider when it supports probing.
func (i *instrumented) HealthCheck(ctx context.Context) error {
	if hc, ok := i.next.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return errors.New("provider: health check unsupported")
}
