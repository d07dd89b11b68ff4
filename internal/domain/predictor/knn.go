package predictor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/okian/profiler/internal/domain/encoder"
)

const defaultK = 5

// KNN is a nearest-neighbour vote over training samples, using the number of
// shared active indicators as similarity.
type KNN struct {
	K int
}

// Name implements Trainer.
func (KNN) Name() string { return StrategyKNN }

type knnSample struct {
	Active []int  `json:"active"`
	Label  string `json:"label"`
}

type knnPayload struct {
	K       int         `json:"k"`
	Width   int         `json:"width"`
	Labels  []string    `json:"labels"`
	Samples []knnSample `json:"samples"`
}

type knnModel struct {
	p knnPayload
}

// Train implements Trainer.
func (k KNN) Train(enc *encoder.Encoder, samples []Sample) (Model, error) {
	if len(samples) == 0 {
		return nil, ErrNoTrainingData
	}
	p := knnPayload{K: k.K, Width: enc.Width(), Labels: sortedLabels(samples)}
	if p.K <= 0 {
		p.K = defaultK
	}
	p.Samples = make([]knnSample, 0, len(samples))
	for _, s := range samples {
		if err := checkWidth(s.Vector, enc.Width()); err != nil {
			return nil, err
		}
		p.Samples = append(p.Samples, knnSample{
			Active: append([]int(nil), s.Vector.Active...),
			Label:  s.Label,
		})
	}
	return &knnModel{p: p}, nil
}

// Restore implements Trainer.
func (KNN) Restore(enc *encoder.Encoder, payload []byte) (Model, error) {
	var p knnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: knn payload: %w", ErrArtifact, err)
	}
	if len(p.Samples) == 0 || len(p.Labels) == 0 {
		return nil, fmt.Errorf("%w: knn payload has no samples", ErrArtifact)
	}
	if p.Width != enc.Width() {
		return nil, fmt.Errorf("%w: knn width %d, encoder %d", ErrIncompatibleArtifact, p.Width, enc.Width())
	}
	known := make(map[string]struct{}, len(p.Labels))
	for _, l := range p.Labels {
		known[l] = struct{}{}
	}
	for _, s := range p.Samples {
		if _, ok := known[s.Label]; !ok {
			return nil, fmt.Errorf("%w: knn sample label %q not in label set", ErrArtifact, s.Label)
		}
		for _, i := range s.Active {
			if i < 0 || i >= p.Width {
				return nil, fmt.Errorf("%w: knn sample index %d out of range", ErrArtifact, i)
			}
		}
	}
	if p.K <= 0 {
		p.K = defaultK
	}
	return &knnModel{p: p}, nil
}

func (m *knnModel) Strategy() string { return StrategyKNN }

func (m *knnModel) Labels() []string { return append([]string(nil), m.p.Labels...) }

func (m *knnModel) Payload() ([]byte, error) { return json.Marshal(m.p) }

// overlap counts indices present in both ascending slices.
func overlap(a, b []int) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// votes returns per-label vote weight among the K nearest samples. Ties in
// similarity keep training order, so the result is deterministic.
func (m *knnModel) votes(v encoder.Vector) ([]float64, error) {
	if err := checkWidth(v, m.p.Width); err != nil {
		return nil, err
	}
	type neighbour struct {
		idx, sim int
	}
	ns := make([]neighbour, len(m.p.Samples))
	for i, s := range m.p.Samples {
		ns[i] = neighbour{idx: i, sim: overlap(v.Active, s.Active)}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].sim > ns[j].sim })
	if len(ns) > m.p.K {
		ns = ns[:m.p.K]
	}

	pos := make(map[string]int, len(m.p.Labels))
	for i, l := range m.p.Labels {
		pos[l] = i
	}
	w := make([]float64, len(m.p.Labels))
	for _, n := range ns {
		// +1 keeps zero-overlap neighbours voting when nothing is shared.
		w[pos[m.p.Samples[n.idx].Label]] += float64(n.sim + 1)
	}
	return w, nil
}

func (m *knnModel) Predict(v encoder.Vector) (string, error) {
	d, err := m.PredictProbability(v)
	if err != nil {
		return "", err
	}
	top, _ := d.Top()
	return top.Outcome, nil
}

func (m *knnModel) PredictProbability(v encoder.Vector) (Distribution, error) {
	w, err := m.votes(v)
	if err != nil {
		return nil, err
	}
	return newDistribution(m.p.Labels, w), nil
}
