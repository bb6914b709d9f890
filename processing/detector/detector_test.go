package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/internal/models"
)

func init() {
	log.Set(zap.NewNop().Sugar())
}

func det(label string, conf float64) models.RawDetection {
	return models.RawDetection{Label: label, Confidence: conf}
}

func TestRankSortsAndCaps(t *testing.T) {
	in := []models.RawDetection{det("a", 0.2), det("b", 0.9), det("c", 0.5), det("d", 0.9)}

	out := Rank(in, 3)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "d", "c"}, []string{out[0].Label, out[1].Label, out[2].Label})
}

func TestRankNoCap(t *testing.T) {
	out := Rank([]models.RawDetection{det("a", 0.1), det("b", 0.3)}, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Label)

	assert.Empty(t, Rank(nil, 5))
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(config.DetectorConfig{Backend: "carrier-pigeon"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBackendsRegistered(t *testing.T) {
	names := Backends()
	assert.Contains(t, names, "websocket")
	assert.Contains(t, names, "http")
	assert.IsIncreasing(t, names)
}

func TestNewBuildsRegisteredBackends(t *testing.T) {
	d, err := New(config.DetectorConfig{Backend: "websocket", Address: "example.com:9000"})
	require.NoError(t, err)
	defer d.Close()
	rd, ok := d.(*RemoteDetector)
	require.True(t, ok)
	assert.Equal(t, "ws://example.com:9000/ws", rd.URL())

	d, err = New(config.DetectorConfig{Backend: "http", Address: "example.com:9000"})
	require.NoError(t, err)
	defer d.Close()
	hd, ok := d.(*HTTPDetector)
	require.True(t, ok)
	assert.Equal(t, "http://example.com:9000/predict", hd.predictURL)
}

func TestCOCOLabel(t *testing.T) {
	assert.Len(t, COCOClasses, 80)
	assert.Equal(t, "person", COCOLabel(0))
	assert.Equal(t, "cat", COCOLabel(15))
	assert.Equal(t, "class 99", COCOLabel(99))
}
