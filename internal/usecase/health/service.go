package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that some search backends are unreachable.
	Degraded Status = "degraded"
	// Unhealthy indicates that the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DatabaseCheck is the check name of the host database.
const DatabaseCheck = "database"

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       Pinger
	backends map[string]Pinger
}

// New creates a Service. backends maps search backend names to their pingers.
func New(db Pinger, backends map[string]Pinger) *Service {
	return &Service{db: db, backends: backends}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.backends)+1)
	checks[DatabaseCheck] = result(s.db.Ping(ctx))

	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks[BackendCheck(name)] = result(s.backends[name].Ping(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[DatabaseCheck] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

// BackendCheck returns the check name of a search backend.
func BackendCheck(name string) string {
	return "backend:" + name
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
