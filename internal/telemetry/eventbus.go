package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// PublishEvent injects the trace context into NATS headers and publishes
// data on subject. Ported from the teacher's libs/go/core/natsctx.Publish.
func PublishEvent(ctx context.Context, nc *nats.Conn, subject string, data []byte) error {
	hdr := nats.Header{}
	carrier := propagation.HeaderCarrier(hdr)
	propagator.Inject(ctx, carrier)
	msg := &nats.Msg{Subject: subject, Data: data, Header: hdr}
	return nc.PublishMsg(msg)
}

// SubscribeEvent wraps nc.Subscribe, extracting the trace context from
// each message and starting a consumer span before calling handler.
// Ported from the teacher's libs/go/core/natsctx.Subscribe.
func SubscribeEvent(nc *nats.Conn, subject string, handler func(context.Context, *nats.Msg)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(m *nats.Msg) {
		carrier := propagation.HeaderCarrier(m.Header)
		ctx := propagator.Extract(context.Background(), carrier)
		tr := otel.Tracer("psim-events")
		ctx, span := tr.Start(ctx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
		handler(ctx, m)
	})
}

// repEvent is the wire shape of one repetition's outcome.
type repEvent struct {
	Rep      int     `json:"rep"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// NatsEventBus publishes batch.RunSequential's per-repetition outcomes to
// a NATS subject, trace-propagated the same way the teacher's control
// plane publishes orchestration events over natsctx. It satisfies
// batch.EventPublisher without internal/batch importing this package
// (or nats.go) directly.
type NatsEventBus struct {
	Conn          *nats.Conn
	SubjectPrefix string
}

// PublishRepEvent implements batch.EventPublisher.
func (b *NatsEventBus) PublishRepEvent(ctx context.Context, rep int, repErr error, duration time.Duration) error {
	evt := repEvent{Rep: rep, Duration: duration.Seconds()}
	if repErr != nil {
		evt.Error = repErr.Error()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("telemetry: marshal rep event: %w", err)
	}
	return PublishEvent(ctx, b.Conn, b.SubjectPrefix+".rep", data)
}
