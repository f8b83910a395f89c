package services

import "context"

// Checker reports whether an external dependency is reachable
type Checker interface {
	// Type returns the dependency type name
	Type() string

	// HealthCheck checks if the dependency is available
	HealthCheck(ctx context.Context) error
}

// BaseChecker provides common functionality for checkers
type BaseChecker struct {
	checkerType string
}

// Type returns the dependency type
func (c *BaseChecker) Type() string {
	return c.checkerType
}

// PingFunc adapts a ping function, such as kvstore.Store.Ping, into a Checker
type PingFunc struct {
	BaseChecker
	ping func(ctx context.Context) error
}

// NewPingFunc creates a checker of the given type around ping
func NewPingFunc(checkerType string, ping func(ctx context.Context) error) *PingFunc {
	return &PingFunc{BaseChecker: BaseChecker{checkerType: checkerType}, ping: ping}
}

// HealthCheck calls the wrapped ping function
func (p *PingFunc) HealthCheck(ctx context.Context) error {
	return p.ping(ctx)
}
