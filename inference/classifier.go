package inference

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jonwraymond/agriops/fault"
)

// DefaultTopK is how many predictions an image classification keeps.
const DefaultTopK = 5

// Prediction is one label with its confidence in [0, 1].
type Prediction struct {
	Label      string
	Confidence float64
}

// String formats p as "label (xx.xx%)".
func (p Prediction) String() string {
	return p.Label + " (" + strconv.FormatFloat(p.Confidence*100, 'f', 2, 64) + "%)"
}

// FormatPredictions joins predictions with ", ".
func FormatPredictions(preds []Prediction) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// TopK returns the k highest scores, best first, labelled from labels.
// Indexes past the end of labels are named class_<i>. Ties keep model order.
func TopK(scores []float64, labels []string, k int) []Prediction {
	preds := make([]Prediction, len(scores))
	for i, s := range scores {
		preds[i] = Prediction{Label: label(labels, i), Confidence: s}
	}
	slices.SortStableFunc(preds, func(a, b Prediction) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if k > 0 && len(preds) > k {
		preds = preds[:k]
	}
	return preds
}

func label(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return "class_" + strconv.Itoa(i)
}

// ImageClassifier labels plant images.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: returned errors carry a fault kind; undecodable images are bad
//     uploads.
//   - The result is sorted by confidence, best first.
type ImageClassifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)

	// Configured reports whether calls can reach a model server.
	Configured() bool
}

// SoilFeatures is the tabular input of the soil model, in model column order.
type SoilFeatures struct {
	PH            float64
	Nitrogen      float64
	Phosphorus    float64
	Potassium     float64
	OrganicMatter float64
	Moisture      float64
}

func (f SoilFeatures) row() []float64 {
	return []float64{f.PH, f.Nitrogen, f.Phosphorus, f.Potassium, f.OrganicMatter, f.Moisture}
}

// SoilClassifier rates a soil sample.
type SoilClassifier interface {
	Assess(ctx context.Context, features SoilFeatures) (string, error)

	Configured() bool
}

// RemoteImageClassifier preprocesses images locally and classifies them on a
// model server.
type RemoteImageClassifier struct {
	server *ModelServer
	pre    *Preprocessor
	labels []string
	topK   int
}

// NewRemoteImageClassifier creates an image classifier.
func NewRemoteImageClassifier(server *ModelServer, pre *Preprocessor, labels []string) *RemoteImageClassifier {
	if pre == nil {
		pre = NewPreprocessor(PreprocessConfig{})
	}
	return &RemoteImageClassifier{server: server, pre: pre, labels: slices.Clone(labels), topK: DefaultTopK}
}

func (c *RemoteImageClassifier) Configured() bool { return true }

func (c *RemoteImageClassifier) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	tensor, err := c.pre.Tensor(ctx, image)
	if err != nil {
		return nil, err
	}
	scores, err := c.server.Predict(ctx, tensor)
	if err != nil {
		return nil, err
	}
	return TopK(scores, c.labels, c.topK), nil
}

// RemoteSoilClassifier scores soil features on a model server and returns
// the label of the best class.
type RemoteSoilClassifier struct {
	server *ModelServer
	labels []string
}

// NewRemoteSoilClassifier creates a soil classifier.
func NewRemoteSoilClassifier(server *ModelServer, labels []string) *RemoteSoilClassifier {
	return &RemoteSoilClassifier{server: server, labels: slices.Clone(labels)}
}

func (c *RemoteSoilClassifier) Configured() bool { return true }

func (c *RemoteSoilClassifier) Assess(ctx context.Context, features SoilFeatures) (string, error) {
	scores, err := c.server.Predict(ctx, [][]float64{features.row()})
	if err != nil {
		return "", err
	}
	best := TopK(scores, c.labels, 1)
	return best[0].Label, nil
}

// UnconfiguredImage is the ImageClassifier used when no disease model
// endpoint is set.
type UnconfiguredImage struct{}

func (UnconfiguredImage) Classify(context.Context, []byte) ([]Prediction, error) {
	return nil, fault.Configuration("inference.disease", "Disease model not configured")
}

func (UnconfiguredImage) Configured() bool { return false }

// UnconfiguredSoil is the SoilClassifier used when no soil model endpoint is
// set.
type UnconfiguredSoil struct{}

func (UnconfiguredSoil) Assess(context.Context, SoilFeatures) (string, error) {
	return "", fault.Configuration("inference.soil", "Soil model not configured")
}

func (UnconfiguredSoil) Configured() bool { return false }

// Assessment formats a soil label for a prompt.
func Assessment(label string) string {
	return fmt.Sprintf("Soil quality: %s", label)
}
