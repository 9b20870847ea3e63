package messaging

import (
	"context"
	"time"
)

// Pinger is implemented by clients that can round-trip the broker.
type Pinger interface {
	IsConnected() bool
	Ping(ctx context.Context) error
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// CheckHealth reports whether client is connected and how long a ping took.
func CheckHealth(ctx context.Context, client Pinger) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	start := time.Now()
	err := client.Ping(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = "health check failed: " + err.Error()
	}
	return status
}
