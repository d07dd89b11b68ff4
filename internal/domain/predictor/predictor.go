// Package predictor holds the trained classifier contract, the training
// strategies that can satisfy it, and the readiness cache the decision cycle
// reads from.
package predictor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/okian/profiler/internal/domain/encoder"
)

// Sentinel kinds for predictor errors.
var (
	ErrNoTrainingData       = errors.New("no training data")
	ErrUnknownStrategy      = errors.New("unknown model strategy")
	ErrWidthMismatch        = errors.New("feature vector width mismatch")
	ErrArtifact             = errors.New("model artifact unreadable")
	ErrIncompatibleArtifact = errors.New("model artifact incompatible")
)

// Probability is the predicted likelihood of one outcome.
type Probability struct {
	Outcome string  `json:"outcome"`
	P       float64 `json:"p"`
}

// Distribution is a probability distribution over outcomes, sorted by P
// descending and then by outcome name.
type Distribution []Probability

// Top returns the most likely outcome.
func (d Distribution) Top() (Probability, bool) {
	if len(d) == 0 {
		return Probability{}, false
	}
	return d[0], true
}

// Of returns the probability assigned to outcome.
func (d Distribution) Of(outcome string) float64 {
	for _, p := range d {
		if p.Outcome == outcome {
			return p.P
		}
	}
	return 0
}

func newDistribution(labels []string, weights []float64) Distribution {
	var total float64
	for _, w := range weights {
		total += w
	}
	d := make(Distribution, len(labels))
	for i, l := range labels {
		p := 0.0
		if total > 0 {
			p = weights[i] / total
		}
		d[i] = Probability{Outcome: l, P: p}
	}
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].P != d[j].P {
			return d[i].P > d[j].P
		}
		return d[i].Outcome < d[j].Outcome
	})
	return d
}

// Predictor is the opaque trained classifier consumed by the decision cycle.
// Every label it returns was present in its training data.
type Predictor interface {
	Predict(v encoder.Vector) (string, error)
	PredictProbability(v encoder.Vector) (Distribution, error)
}

// Model is a Predictor that can be persisted as an artifact.
type Model interface {
	Predictor
	Strategy() string
	Labels() []string
	Payload() ([]byte, error)
}

// Sample is one labelled training example.
type Sample struct {
	Vector encoder.Vector
	Label  string
}

// Trainer builds a Model from samples. Strategies are interchangeable; the
// decision cycle never knows which one produced its predictor.
type Trainer interface {
	Name() string
	Train(enc *encoder.Encoder, samples []Sample) (Model, error)
	Restore(enc *encoder.Encoder, payload []byte) (Model, error)
}

// Strategy names.
const (
	StrategyNaiveBayes = "naive_bayes"
	StrategyKNN        = "knn"
)

// Strategies returns the names of every built-in strategy.
func Strategies() []string {
	return []string{StrategyKNN, StrategyNaiveBayes}
}

// NewTrainer returns the strategy named name. k only applies to knn.
func NewTrainer(name string, k int) (Trainer, error) {
	switch name {
	case StrategyNaiveBayes, "":
		return NaiveBayes{Alpha: 1}, nil
	case StrategyKNN:
		return KNN{K: k}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func checkWidth(v encoder.Vector, width int) error {
	if v.Width != width {
		return fmt.Errorf("%w: got %d, model expects %d", ErrWidthMismatch, v.Width, width)
	}
	return nil
}

// sortedLabels returns the distinct labels of samples in name order.
func sortedLabels(samples []Sample) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range samples {
		if _, ok := seen[s.Label]; !ok {
			seen[s.Label] = struct{}{}
			out = append(out, s.Label)
		}
	}
	sort.Strings(out)
	return out
}
