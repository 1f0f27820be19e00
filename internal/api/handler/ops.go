// Package handler provides HTTP handlers for the riskdesk API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/artifact"
	"github.com/riskdesk/riskdesk/internal/provider/resilience"
	"github.com/riskdesk/riskdesk/internal/vision"
)

// ArtifactStatus reports tabular artifact load state.
type ArtifactStatus interface {
	Status() artifact.Status
}

// ModelState reports the vision model lifecycle.
type ModelState interface {
	State() vision.State
	LoadError() error
}

// Pinger checks a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of the ops endpoints. Nil fields are
// reported as not configured.
type OpsConfig struct {
	Version   string
	BuildTime string
	Artifacts ArtifactStatus
	Vision    ModelState
	Database  Pinger
	Backends  *resilience.Registry
	Gate      VisionGate
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. It reports artifact and model
// state without triggering a load; only a failed tabular load or an
// unreachable database makes the service unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.subsystems(r.Context())

	health := models.Health{
		Status:  overall(subsystems),
		Time:    models.Timestamp(time.Now()),
		Details: make(map[string]interface{}, len(subsystems)),
	}
	for _, s := range subsystems {
		health.Details[s.Name] = s.Status
	}

	status := http.StatusOK
	if health.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and backend status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.subsystems(r.Context())
	status := models.SystemStatus{
		Status:     overall(subsystems),
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Backends:   []models.BackendStatus{},
	}

	if h.cfg.Artifacts != nil && len(h.cfg.Artifacts.Status().MissingScalers) > 0 {
		status.DegradationFlags = append(status.DegradationFlags, "premium_scaling_degraded")
	}
	if h.cfg.Gate != nil && !h.cfg.Gate.IsVisionEnabled(r.Context()) {
		status.DegradationFlags = append(status.DegradationFlags, "vision_classification_disabled")
	}

	if h.cfg.Backends != nil {
		for _, b := range h.cfg.Backends.AllHealth() {
			bs := backendStatus(b)
			if b.IsUnhealthy() {
				status.DegradationFlags = append(status.DegradationFlags, "circuit_open:"+b.Name)
				if status.Status == models.HealthStatusOK {
					status.Status = models.HealthStatusDegraded
				}
			}
			status.Backends = append(status.Backends, bs)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	var out []models.SubsystemStatus

	if h.cfg.Database != nil {
		s := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := h.cfg.Database.Ping(pingCtx); err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = detail(err.Error())
		}
		cancel()
		out = append(out, s)
	}

	if h.cfg.Artifacts != nil {
		st := h.cfg.Artifacts.Status()
		s := models.SubsystemStatus{Name: "tabular-artifacts", Status: models.HealthStatusOK}
		switch {
		case st.TabularError != nil:
			s.Status = models.HealthStatusFail
			s.Detail = detail(st.TabularError.Error())
		case !st.TabularLoaded:
			s.Detail = detail("not loaded yet")
		case len(st.MissingScalers) > 0:
			s.Status = models.HealthStatusDegraded
			s.Detail = detail("missing scalers, predicting unscaled")
		}
		out = append(out, s)
	}

	if h.cfg.Vision != nil {
		s := models.SubsystemStatus{Name: "vision-model", Status: models.HealthStatusOK}
		switch h.cfg.Vision.State() {
		case vision.StateFailed:
			// Classification is optional; the premium API stays usable.
			s.Status = models.HealthStatusDegraded
			if err := h.cfg.Vision.LoadError(); err != nil {
				s.Detail = detail(err.Error())
			}
		case vision.StateUnloaded:
			s.Detail = detail("not loaded yet")
		}
		out = append(out, s)
	}

	return out
}

func overall(subsystems []models.SubsystemStatus) models.HealthStatus {
	status := models.HealthStatusOK
	for _, s := range subsystems {
		switch s.Status {
		case models.HealthStatusFail:
			return models.HealthStatusFail
		case models.HealthStatusDegraded:
			status = models.HealthStatusDegraded
		}
	}
	return status
}

func backendStatus(b *resilience.BackendHealth) models.BackendStatus {
	bs := models.BackendStatus{
		Backend:      b.Name,
		Status:       models.HealthStatusOK,
		CircuitState: b.CircuitState.String(),
	}
	switch b.CircuitState {
	case gobreaker.StateOpen:
		bs.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		bs.Status = models.HealthStatusDegraded
	}
	if b.LastSuccessAt != nil {
		t := models.Timestamp(*b.LastSuccessAt)
		bs.LastSuccessAt = &t
	}
	if b.LastFailureAt != nil {
		t := models.Timestamp(*b.LastFailureAt)
		bs.LastFailureAt = &t
	}
	if b.LastError != "" {
		bs.Message = detail(b.LastError)
	}
	return bs
}

func detail(s string) *string {
	return &s
}
