package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveview/internal/models"
)

func det(label string, conf float64, x, y, w, h float64) models.RawDetection {
	return models.RawDetection{Label: label, Confidence: conf, Box: models.Box{X: x, Y: y, Width: w, Height: h}}
}

func TestAggregate_CatsAndDog(t *testing.T) {
	out := Aggregate([]models.RawDetection{
		det("cat", 0.81, 10, 10, 50, 50),
		det("cat", 0.92, 12, 12, 48, 48),
		det("dog", 0.70, 100, 100, 40, 40),
	})

	require.Len(t, out, 2)
	assert.Equal(t, models.AggregatedEntry{Label: "cat", Confidence: 0.92, Box: models.Box{X: 12, Y: 12, Width: 48, Height: 48}}, out[0])
	assert.Equal(t, models.AggregatedEntry{Label: "dog", Confidence: 0.70, Box: models.Box{X: 100, Y: 100, Width: 40, Height: 40}}, out[1])
}

func TestAggregate_TieKeepsFirst(t *testing.T) {
	out := Aggregate([]models.RawDetection{
		det("cup", 0.5, 1, 1, 1, 1),
		det("cup", 0.5, 2, 2, 2, 2),
	})

	require.Len(t, out, 1)
	assert.Equal(t, models.Box{X: 1, Y: 1, Width: 1, Height: 1}, out[0].Box)
}

func TestAggregate_EqualConfidenceFirstSeenOrder(t *testing.T) {
	out := Aggregate([]models.RawDetection{
		det("b", 0.4, 0, 0, 1, 1),
		det("a", 0.9, 0, 0, 1, 1),
		det("c", 0.4, 0, 0, 1, 1),
	})

	labels := make([]string, len(out))
	for i, e := range out {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{"a", "b", "c"}, labels)
}

func TestAggregate_OnePerLabelWithMax(t *testing.T) {
	in := []models.RawDetection{
		det("person", 0.3, 0, 0, 1, 1),
		det("car", 0.55, 0, 0, 1, 1),
		det("person", 0.95, 0, 0, 1, 1),
		det("car", 0.2, 0, 0, 1, 1),
		det("person", 0.6, 0, 0, 1, 1),
		det("bike", 0.55, 0, 0, 1, 1),
	}
	out := Aggregate(in)

	maxByLabel := map[string]float64{}
	for _, d := range in {
		if d.Confidence > maxByLabel[d.Label] {
			maxByLabel[d.Label] = d.Confidence
		}
	}

	require.Len(t, out, len(maxByLabel))
	seen := map[string]bool{}
	for i, e := range out {
		assert.False(t, seen[e.Label], "duplicate label %s", e.Label)
		seen[e.Label] = true
		assert.Equal(t, maxByLabel[e.Label], e.Confidence)
		if i > 0 {
			assert.GreaterOrEqual(t, out[i-1].Confidence, e.Confidence)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
