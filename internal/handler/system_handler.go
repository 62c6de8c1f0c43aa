// internal/handler/system_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/response"
	"github.com/unclebandit/bulksms-campaigns/internal/scheduler"
)

// SchedulerControl is the part of *scheduler.Scheduler the handlers drive.
type SchedulerControl interface {
	Start() bool
	Stop() bool
	Status() scheduler.Status
}

// SystemHandler serves the health check and scheduler lifecycle endpoints.
type SystemHandler struct {
	Scheduler SchedulerControl
	Now       func() time.Time
}

func NewSystemHandler(s SchedulerControl) *SystemHandler {
	return &SystemHandler{Scheduler: s, Now: time.Now}
}

// Health reports that the API is up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "API is running successfully", map[string]any{
		"timestamp": h.Now().UTC().Format(time.RFC3339),
	})
}

func (h *SystemHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "", map[string]any{"scheduler": h.Scheduler.Status()})
}

func (h *SystemHandler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	msg := "Scheduler started"
	if !h.Scheduler.Start() {
		msg = "Scheduler already running"
	}
	response.OK(w, msg, map[string]any{"scheduler": h.Scheduler.Status()})
}

func (h *SystemHandler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	msg := "Scheduler stopped"
	if !h.Scheduler.Stop() {
		msg = "Scheduler not running"
	}
	response.OK(w, msg, map[string]any{"scheduler": h.Scheduler.Status()})
}
