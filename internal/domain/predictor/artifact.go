package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/profiler/internal/domain/encoder"
)

// LabelSet answers whether an outcome name is a valid catalog key.
type LabelSet interface {
	Has(name string) bool
}

// Artifact is the on-disk form of a trained model. Features pins the
// encoder vocabulary so a mismatched build refuses to load it.
type Artifact struct {
	Strategy     string          `json:"strategy"`
	Features     []string        `json:"features"`
	Labels       []string        `json:"labels"`
	TrainingRows int             `json:"training_rows"`
	TrainedAt    time.Time       `json:"trained_at"`
	Payload      json.RawMessage `json:"payload"`
}

// Export captures m as an artifact.
func Export(m Model, enc *encoder.Encoder, rows int, trainedAt time.Time) (*Artifact, error) {
	payload, err := m.Payload()
	if err != nil {
		return nil, fmt.Errorf("export %s payload: %w", m.Strategy(), err)
	}
	return &Artifact{
		Strategy:     m.Strategy(),
		Features:     enc.FeatureNames(),
		Labels:       m.Labels(),
		TrainingRows: rows,
		TrainedAt:    trainedAt.UTC(),
		Payload:      payload,
	}, nil
}

// WriteArtifact writes a to path via a temp file and rename so watchers
// never observe a partial file.
func WriteArtifact(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

// ReadArtifact loads and decodes the artifact at path.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifact, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrArtifact, path, err)
	}
	if a.Strategy == "" || len(a.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s has no strategy or payload", ErrArtifact, path)
	}
	return &a, nil
}

// Restore rebuilds the model, verifying the vocabulary matches enc and that
// every label resolves in labels.
func (a *Artifact) Restore(enc *encoder.Encoder, labels LabelSet) (Model, error) {
	if err := enc.CheckCompatible(a.Features); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, err)
	}
	var missing []error
	for _, l := range a.Labels {
		if labels != nil && !labels.Has(l) {
			missing = append(missing, fmt.Errorf("label %q not in catalog", l))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, errors.Join(missing...))
	}
	t, err := NewTrainer(a.Strategy, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, err)
	}
	m, err := t.Restore(enc, a.Payload)
	if err != nil {
		return nil, err
	}
	return m, nil
}
