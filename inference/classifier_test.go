package inference

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/fault"
)

func TestTopK(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []string
		k      int
		want   []Prediction
	}{
		{
			name:   "sorted best first",
			scores: []float64{0.1, 0.6, 0.3},
			labels: []string{"a", "b", "c"},
			k:      5,
			want:   []Prediction{{"b", 0.6}, {"c", 0.3}, {"a", 0.1}},
		},
		{
			name:   "truncated",
			scores: []float64{0.1, 0.6, 0.3},
			labels: []string{"a", "b", "c"},
			k:      1,
			want:   []Prediction{{"b", 0.6}},
		},
		{
			name:   "missing labels",
			scores: []float64{0.2, 0.8},
			labels: []string{"a"},
			k:      2,
			want:   []Prediction{{"class_1", 0.8}, {"a", 0.2}},
		},
		{
			name:   "ties keep model order",
			scores: []float64{0.5, 0.5},
			labels: []string{"first", "second"},
			k:      0,
			want:   []Prediction{{"first", 0.5}, {"second", 0.5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopK(tt.scores, tt.labels, tt.k))
		})
	}
}

func TestFormatPredictions(t *testing.T) {
	got := FormatPredictions([]Prediction{{"Rust", 0.912}, {"Healthy", 0.05}})
	assert.Equal(t, "Rust (91.20%), Healthy (5.00%)", got)
	assert.Equal(t, "", FormatPredictions(nil))
}

func TestRemoteImageClassifier_Classify(t *testing.T) {
	var req struct {
		Instances [][][][]float64 `json:"instances"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"predictions": [[0.1, 0.7, 0.15, 0.05]]}`))
	}))
	defer srv.Close()

	c := NewRemoteImageClassifier(NewModelServer(srv.URL, "inference.disease", nil), nil, config.DefaultDiseaseLabels)
	preds, err := c.Classify(context.Background(), encodePNG(t, solidImage(32, 32, color.White)))
	require.NoError(t, err)

	assert.Equal(t, "Bacterial Blight (70.00%), Rust (15.00%), Healthy (10.00%), Leaf Spot (5.00%)", FormatPredictions(preds))
	require.Len(t, req.Instances, 1)
	require.Len(t, req.Instances[0], DefaultInputSize)
	require.Len(t, req.Instances[0][0], DefaultInputSize)
	require.Len(t, req.Instances[0][0][0], 3)
	assert.InDelta(t, 1.0, req.Instances[0][10][10][1], 0.01)
}

func TestRemoteImageClassifier_BadImageSkipsServer(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewRemoteImageClassifier(NewModelServer(srv.URL, "inference.disease", nil), nil, nil)
	_, err := c.Classify(context.Background(), []byte("not an image"))

	assert.Equal(t, fault.KindBadUpload, fault.KindOf(err))
	assert.Zero(t, calls)
}

func TestRemoteSoilClassifier_Assess(t *testing.T) {
	var req struct {
		Instances [][]float64 `json:"instances"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"predictions": [[0.2, 0.8]]}`))
	}))
	defer srv.Close()

	c := NewRemoteSoilClassifier(NewModelServer(srv.URL, "inference.soil", nil), config.DefaultSoilLabels)
	got, err := c.Assess(context.Background(), SoilFeatures{PH: 6.5, Nitrogen: 120, Phosphorus: 45, Potassium: 210, Moisture: 18})
	require.NoError(t, err)

	assert.Equal(t, "Good", got)
	assert.Equal(t, [][]float64{{6.5, 120, 45, 210, 0, 18}}, req.Instances)
	assert.Equal(t, "Soil quality: Good", Assessment(got))
}

func TestUnconfigured(t *testing.T) {
	_, err := UnconfiguredImage{}.Classify(context.Background(), []byte("x"))
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
	assert.False(t, UnconfiguredImage{}.Configured())

	_, err = UnconfiguredSoil{}.Assess(context.Background(), SoilFeatures{})
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
	assert.False(t, UnconfiguredSoil{}.Configured())
}
