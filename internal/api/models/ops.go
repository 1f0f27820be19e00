package models

// Health is the body of the liveness and readiness probes.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the authenticated detailed status view.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Backends   []BackendStatus   `json:"backends"`
	// DegradationFlags names every reason the service is not at full
	// capability, e.g. "circuit_open:premium-regressor".
	DegradationFlags []string `json:"degradation_flags,omitempty"`
}

type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// BackendStatus mirrors resilience.BackendHealth for one remote backend.
type BackendStatus struct {
	Backend       string       `json:"backend"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuit_state"`
	LastSuccessAt *Timestamp   `json:"last_success_at,omitempty"`
	LastFailureAt *Timestamp   `json:"last_failure_at,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
