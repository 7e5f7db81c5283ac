package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	txOnce    sync.Once
	txCounter metric.Int64Counter
)

// RecordTx counts a protocol transaction on the global meter, labelled with
// the operation and whether it committed. Instruments created before Init
// are bound once a provider is installed.
func RecordTx(ctx context.Context, op string, committed bool) {
	txOnce.Do(func() {
		counter, err := otel.Meter(TracerName).Int64Counter("prnt.tx",
			metric.WithDescription("Protocol transactions by operation and outcome"))
		if err == nil {
			txCounter = counter
		}
	})
	if txCounter == nil {
		return
	}
	outcome := "reverted"
	if committed {
		outcome = "committed"
	}
	txCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}
