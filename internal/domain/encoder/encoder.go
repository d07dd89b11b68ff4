// Package encoder maps categorical quiz answers onto the one-hot feature
// vector the predictor was trained with.
//
// The transform is fixed by a Vocabulary: the ordered list of (field, value)
// indicators. Unknown or missing values activate no indicator, so they
// contribute nothing to a prediction instead of failing.
package encoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/profiler/internal/domain/quiz"
)

// ErrIncompatible reports a vocabulary that does not match the encoder.
var ErrIncompatible = errors.New("incompatible feature vocabulary")

// Feature is one indicator column.
type Feature struct {
	Field quiz.Field
	Value string
}

// Name renders the feature the way it is stored in model artifacts,
// e.g. "environment_Oceans & Lakes".
func (f Feature) Name() string {
	return string(f.Field) + "_" + f.Value
}

// Group is the contiguous slice of indicator columns belonging to one field.
type Group struct {
	Field quiz.Field
	Start int
	Size  int
}

// Vector is an encoded set of answers. Active holds the indices of set
// indicators in ascending order; at most one per field.
type Vector struct {
	Width  int
	Active []int
}

// Dense expands v into a 0/1 slice of length Width.
func (v Vector) Dense() []float64 {
	out := make([]float64, v.Width)
	for _, i := range v.Active {
		out[i] = 1
	}
	return out
}

// Encoder is a pure, deterministic answers-to-vector transform.
type Encoder struct {
	features []Feature
	groups   []Group
	index    map[quiz.Field]map[string]int
}

// New builds an encoder over fields, using each field's closed value set in
// canonical order.
func New(fields ...quiz.Field) (*Encoder, error) {
	if len(fields) == 0 {
		fields = quiz.Fields()
	}
	e := &Encoder{index: make(map[quiz.Field]map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := e.index[f]; dup {
			return nil, fmt.Errorf("duplicate field %q", f)
		}
		choices, err := quiz.Choices(f)
		if err != nil {
			return nil, err
		}
		g := Group{Field: f, Start: len(e.features), Size: len(choices)}
		e.index[f] = make(map[string]int, len(choices))
		for _, v := range choices {
			e.index[f][v] = len(e.features)
			e.features = append(e.features, Feature{Field: f, Value: v})
		}
		e.groups = append(e.groups, g)
	}
	return e, nil
}

// MustNew is New for static field lists.
func MustNew(fields ...quiz.Field) *Encoder {
	e, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// Encode maps answers to a vector. It never fails.
func (e *Encoder) Encode(a quiz.Answers) Vector {
	v := Vector{Width: len(e.features), Active: make([]int, 0, len(e.groups))}
	for _, g := range e.groups {
		if i, ok := e.index[g.Field][strings.TrimSpace(a.Get(g.Field))]; ok {
			v.Active = append(v.Active, i)
		}
	}
	return v
}

// Width returns the number of indicator columns.
func (e *Encoder) Width() int {
	return len(e.features)
}

// Groups returns the per-field column ranges.
func (e *Encoder) Groups() []Group {
	return append([]Group(nil), e.groups...)
}

// Fields returns the encoded fields in order.
func (e *Encoder) Fields() []quiz.Field {
	out := make([]quiz.Field, len(e.groups))
	for i, g := range e.groups {
		out[i] = g.Field
	}
	return out
}

// FeatureNames returns the vocabulary as stored in artifacts.
func (e *Encoder) FeatureNames() []string {
	out := make([]string, len(e.features))
	for i, f := range e.features {
		out[i] = f.Name()
	}
	return out
}

// Feature returns the indicator at column i.
func (e *Encoder) Feature(i int) Feature {
	return e.features[i]
}

// CheckCompatible verifies names is exactly this encoder's vocabulary in the
// same order. A model trained against any other ordering would silently
// predict garbage.
func (e *Encoder) CheckCompatible(names []string) error {
	if len(names) != len(e.features) {
		return fmt.Errorf("%w: %d features, encoder has %d", ErrIncompatible, len(names), len(e.features))
	}
	for i, n := range names {
		if want := e.features[i].Name(); n != want {
			return fmt.Errorf("%w: column %d is %q, encoder has %q", ErrIncompatible, i, n, want)
		}
	}
	return nil
}
