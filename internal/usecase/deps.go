package usecase

import (
	"time"

	"rentalengine/internal/events"
	"rentalengine/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

// Observability はusecase共通の横断部品。nilのものは何もしない実装で埋める
type Observability struct {
	Log       *zap.Logger
	Metrics   *metrics.EngineMetrics
	Publisher events.Publisher
}

func (o Observability) withDefaults() Observability {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	return o
}

var tracer = otel.Tracer("rentalengine/usecase")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
