package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"liveview/internal/models"
	"liveview/processing/overlay"
)

// StatusResponse mirrors the status bar.
type StatusResponse struct {
	Running   bool    `json:"running"`
	State     string  `json:"state"`
	FPS       uint    `json:"fps"`
	LatencyMS float64 `json:"latency_ms"`
	Cycles    uint64  `json:"cycles"`
	Failures  uint64  `json:"failures"`
	LastError string  `json:"last_error,omitempty"`
}

// DetectionEntry is one row of the detection list.
type DetectionEntry struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Percent    string     `json:"percent"`
	Box        models.Box `json:"box"`
}

func stateName(running bool) string {
	if running {
		return "Running"
	}
	return "Paused"
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.ctrl.Stats()
	return c.JSON(StatusResponse{
		Running:   st.Running,
		State:     stateName(st.Running),
		FPS:       st.FPS,
		LatencyMS: float64(st.Latency.Microseconds()) / 1000,
		Cycles:    st.Cycles,
		Failures:  st.Failures,
		LastError: st.LastError,
	})
}

func (s *Server) handleDetections(c *fiber.Ctx) error {
	entries := lo.Map(s.ctrl.Latest(), func(e models.AggregatedEntry, _ int) DetectionEntry {
		return DetectionEntry{
			Label:      e.Label,
			Confidence: e.Confidence,
			Percent:    overlay.FormatListItem(e).Confidence,
			Box:        e.Box,
		}
	})
	return c.JSON(entries)
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	running := s.ctrl.Toggle()
	if s.OnToggle != nil {
		s.OnToggle(running)
	}
	return c.JSON(fiber.Map{
		"running": running,
		"state":   stateName(running),
	})
}
