// Package detector implements the object-detection backends the overlay loop
// calls once per frame.
package detector

import (
	"context"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"liveview/internal/config"
	"liveview/internal/models"
)

var (
	ErrUnknownBackend = errors.New("detector: unknown backend")
	ErrNotConnected   = errors.New("detector: not connected")
)

// Detector maps a frame to labeled boxes in the frame's own pixel space.
type Detector interface {
	// Detect returns at most maxResults detections, best first. A
	// non-positive maxResults means no cap.
	Detect(ctx context.Context, frame image.Image, maxResults int) ([]models.RawDetection, error)
	Close() error
}

// HealthChecker is implemented by backends that can report readiness
// without running inference.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CheckHealth runs d's health check within timeout. Backends without one
// are assumed healthy.
func CheckHealth(ctx context.Context, d Detector, timeout time.Duration) error {
	hc, ok := d.(HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return hc.Health(ctx)
}

// Factory builds a backend from its config section.
type Factory func(cfg config.DetectorConfig) (Detector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to New under name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the backend named by cfg.Backend.
func New(cfg config.DetectorConfig) (Detector, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (have %v)", cfg.Backend, Backends())
	}
	return f(cfg)
}

// Rank sorts detections by descending confidence and keeps the first
// maxResults. Equal confidences keep their input order.
func Rank(dets []models.RawDetection, maxResults int) []models.RawDetection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
	if maxResults > 0 && len(dets) > maxResults {
		dets = dets[:maxResults]
	}
	return dets
}

func timeoutOf(cfg config.DetectorConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cfg.Timeout)
}
