package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawDetection_UnmarshalArrayBox(t *testing.T) {
	var d RawDetection
	err := json.Unmarshal([]byte(`{"label":"cat","confidence":0.92,"box":[12,12,48,48]}`), &d)
	require.NoError(t, err)

	assert.Equal(t, "cat", d.Label)
	assert.InDelta(t, 0.92, d.Confidence, 1e-9)
	assert.Equal(t, Box{X: 12, Y: 12, Width: 48, Height: 48}, d.Box)
}

func TestRawDetection_UnmarshalCocoStyle(t *testing.T) {
	var d RawDetection
	err := json.Unmarshal([]byte(`{"class":"dog","score":0.7,"box":{"x":1,"y":2,"width":3,"height":4}}`), &d)
	require.NoError(t, err)

	assert.Equal(t, "dog", d.Label)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
	assert.Equal(t, Box{X: 1, Y: 2, Width: 3, Height: 4}, d.Box)
}

func TestRawDetection_UnmarshalShortBox(t *testing.T) {
	var d RawDetection
	err := json.Unmarshal([]byte(`{"label":"cat","confidence":0.5,"box":[1,2,3]}`), &d)
	assert.Error(t, err)
}

func TestRawDetection_MarshalArrayBox(t *testing.T) {
	out, err := json.Marshal(RawDetection{Label: "cat", Confidence: 0.5, Box: Box{X: 1, Y: 2, Width: 3, Height: 4}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"cat","confidence":0.5,"box":[1,2,3,4]}`, string(out))
}

func TestBox_Scale(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 30, Height: 40}
	assert.Equal(t, Box{X: 20, Y: 10, Width: 60, Height: 20}, b.Scale(2, 0.5))
	assert.Equal(t, b, b.Scale(1, 1))
}

func TestRawDetection_UnmarshalFlatBox(t *testing.T) {
	var d RawDetection
	err := json.Unmarshal([]byte(`{"x":5,"y":6,"width":7,"height":8,"class":"stamp","confidence":0.4}`), &d)
	require.NoError(t, err)

	assert.Equal(t, "stamp", d.Label)
	assert.Equal(t, Box{X: 5, Y: 6, Width: 7, Height: 8}, d.Box)
}

func TestRawDetection_UnmarshalBboxKey(t *testing.T) {
	var d RawDetection
	err := json.Unmarshal([]byte(`{"class":"person","score":0.88,"bbox":[1,2,3,4]}`), &d)
	require.NoError(t, err)

	assert.Equal(t, "person", d.Label)
	assert.Equal(t, Box{X: 1, Y: 2, Width: 3, Height: 4}, d.Box)
}
