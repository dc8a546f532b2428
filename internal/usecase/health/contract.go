package health

import "context"

// Pinger checks the availability of a component.
type Pinger interface {
	Ping(ctx context.Context) error
}
