package predictor

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/profiler/internal/domain/encoder"
)

// NaiveBayes trains a categorical naive Bayes classifier with additive
// (Laplace) smoothing. Inactive field groups contribute nothing, matching
// the encoder's unknown-value policy.
type NaiveBayes struct {
	Alpha float64
}

// Name implements Trainer.
func (NaiveBayes) Name() string { return StrategyNaiveBayes }

type naiveBayesPayload struct {
	Alpha         float64  `json:"alpha"`
	Labels        []string `json:"labels"`
	ClassCounts   []int    `json:"class_counts"`
	FeatureCounts [][]int  `json:"feature_counts"`
}

type naiveBayesModel struct {
	p          naiveBayesPayload
	groupSizes []int // per column: size of the field group it belongs to
	total      int
}

// Train implements Trainer.
func (nb NaiveBayes) Train(enc *encoder.Encoder, samples []Sample) (Model, error) {
	if len(samples) == 0 {
		return nil, ErrNoTrainingData
	}
	alpha := nb.Alpha
	if alpha <= 0 {
		alpha = 1
	}
	labels := sortedLabels(samples)
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	p := naiveBayesPayload{
		Alpha:         alpha,
		Labels:        labels,
		ClassCounts:   make([]int, len(labels)),
		FeatureCounts: make([][]int, len(labels)),
	}
	for i := range p.FeatureCounts {
		p.FeatureCounts[i] = make([]int, enc.Width())
	}
	for _, s := range samples {
		if err := checkWidth(s.Vector, enc.Width()); err != nil {
			return nil, err
		}
		c := pos[s.Label]
		p.ClassCounts[c]++
		for _, f := range s.Vector.Active {
			p.FeatureCounts[c][f]++
		}
	}
	return newNaiveBayesModel(enc, p), nil
}

// Restore implements Trainer.
func (NaiveBayes) Restore(enc *encoder.Encoder, payload []byte) (Model, error) {
	var p naiveBayesPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: naive_bayes payload: %w", ErrArtifact, err)
	}
	if len(p.Labels) == 0 || len(p.ClassCounts) != len(p.Labels) || len(p.FeatureCounts) != len(p.Labels) {
		return nil, fmt.Errorf("%w: naive_bayes payload shape", ErrArtifact)
	}
	for _, row := range p.FeatureCounts {
		if len(row) != enc.Width() {
			return nil, fmt.Errorf("%w: naive_bayes feature counts width %d, encoder %d",
				ErrIncompatibleArtifact, len(row), enc.Width())
		}
	}
	if p.Alpha <= 0 {
		p.Alpha = 1
	}
	return newNaiveBayesModel(enc, p), nil
}

func newNaiveBayesModel(enc *encoder.Encoder, p naiveBayesPayload) *naiveBayesModel {
	m := &naiveBayesModel{p: p, groupSizes: make([]int, enc.Width())}
	for _, g := range enc.Groups() {
		for i := g.Start; i < g.Start+g.Size; i++ {
			m.groupSizes[i] = g.Size
		}
	}
	for _, c := range p.ClassCounts {
		m.total += c
	}
	return m
}

func (m *naiveBayesModel) Strategy() string { return StrategyNaiveBayes }

func (m *naiveBayesModel) Labels() []string { return append([]string(nil), m.p.Labels...) }

func (m *naiveBayesModel) Payload() ([]byte, error) { return json.Marshal(m.p) }

// logScores returns the unnormalized log posterior of every class.
func (m *naiveBayesModel) logScores(v encoder.Vector) ([]float64, error) {
	if err := checkWidth(v, len(m.groupSizes)); err != nil {
		return nil, err
	}
	a := m.p.Alpha
	k := float64(len(m.p.Labels))
	scores := make([]float64, len(m.p.Labels))
	for c := range m.p.Labels {
		n := float64(m.p.ClassCounts[c])
		s := math.Log((n + a) / (float64(m.total) + a*k))
		for _, f := range v.Active {
			s += math.Log((float64(m.p.FeatureCounts[c][f]) + a) / (n + a*float64(m.groupSizes[f])))
		}
		scores[c] = s
	}
	return scores, nil
}

func (m *naiveBayesModel) Predict(v encoder.Vector) (string, error) {
	scores, err := m.logScores(v)
	if err != nil {
		return "", err
	}
	best := 0
	for c := 1; c < len(scores); c++ {
		if scores[c] > scores[best] {
			best = c
		}
	}
	return m.p.Labels[best], nil
}

func (m *naiveBayesModel) PredictProbability(v encoder.Vector) (Distribution, error) {
	scores, err := m.logScores(v)
	if err != nil {
		return nil, err
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		maxScore = math.Max(maxScore, s)
	}
	weights := make([]float64, len(scores))
	for i, s := range scores {
		weights[i] = math.Exp(s - maxScore)
	}
	return newDistribution(m.p.Labels, weights), nil
}
