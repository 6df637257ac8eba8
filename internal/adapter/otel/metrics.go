package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gather"

// Metrics holds all Gather metric instruments.
type Metrics struct {
	EventTransitions        metric.Int64Counter
	RegistrationTransitions metric.Int64Counter
	BridgeChanges           metric.Int64Counter
	BridgeDrops             metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventTransitions, err = meter.Int64Counter("gather.event.transitions",
		metric.WithDescription("Number of event lifecycle transitions"))
	if err != nil {
		return nil, err
	}

	m.RegistrationTransitions, err = meter.Int64Counter("gather.registration.transitions",
		metric.WithDescription("Number of registration lifecycle transitions"))
	if err != nil {
		return nil, err
	}

	m.BridgeChanges, err = meter.Int64Counter("gather.bridge.changes",
		metric.WithDescription("Number of change-feed records normalized and broadcast"))
	if err != nil {
		return nil, err
	}

	m.BridgeDrops, err = meter.Int64Counter("gather.bridge.drops",
		metric.WithDescription("Number of change-feed records dropped during normalization"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
