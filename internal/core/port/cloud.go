package port

import (
	"context"

	"computherm2mqtt/pkg/bseries"
)

// CloudService is the vendor REST API surface the actors depend on.
// Satisfied by bseries.Client and bseries.TestClient.
type CloudService interface {
	Login(ctx context.Context) (string, error)
	Token() (string, error)
	TokenNeedsRefresh() bool
	Devices(ctx context.Context) ([]bseries.Device, error)
	SendCommand(ctx context.Context, deviceID int, cmd bseries.Command) error
}

// DeviceStream is the real-time event stream surface.
// Satisfied by bseries.Stream and bseries.TestStream.
type DeviceStream interface {
	Start(ctx context.Context)
	Stop()
	UpdateToken(token string)
	RequestScan(serial string)
}

// StreamFactory builds a DeviceStream for a fresh token and device set.
type StreamFactory func(cfg bseries.StreamConfig, handler bseries.StreamHandler) DeviceStream
