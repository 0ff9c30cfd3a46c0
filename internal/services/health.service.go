package services

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is anything whose liveness can be probed, e.g. the database or redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	names []string
	deps  map[string]Pinger
}

func NewHealthService() *HealthService {
	return &HealthService{deps: make(map[string]Pinger)}
}

// Register adds a named dependency to the health report.
func (s *HealthService) Register(name string, p Pinger) *HealthService {
	if p == nil {
		return s
	}
	if _, ok := s.deps[name]; !ok {
		s.names = append(s.names, name)
	}
	s.deps[name] = p
	return s
}

// Get pings every dependency and returns a status per name. The error joins every failure.
func (s *HealthService) Get(ctx context.Context) (map[string]string, error) {
	status := make(map[string]string, len(s.names))
	var errs []error
	for _, name := range s.names {
		if err := s.deps[name].Ping(ctx); err != nil {
			status[name] = "down"
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		status[name] = "up"
	}
	return status, errors.Join(errs...)
}
