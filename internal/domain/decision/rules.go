package decision

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/okian/profiler/internal/domain/quiz"
)

// Rand is the randomness the cycle draws from. IntN returns a value in
// [0, n).
type Rand interface {
	IntN(n int) int
}

// RarityRule replaces the predicted outcome with a rare one when the player
// opted into destiny, every Require answer matches, and a uniform draw in
// [1, Range] equals Hit.
type RarityRule struct {
	Name    string
	Require map[quiz.Field]string
	Range   int
	Hit     int
}

// Matches reports whether the rule's conditions hold for a.
func (r RarityRule) Matches(a quiz.Answers) bool {
	if !a.Destiny {
		return false
	}
	for f, v := range r.Require {
		if a.Get(f) != v {
			return false
		}
	}
	return true
}

// Validate checks the draw parameters and required answers.
func (r RarityRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rarity rule without a name", ErrInvalidRule)
	}
	if err := validateDraw(r.Range, r.Hit); err != nil {
		return fmt.Errorf("rarity rule %q: %w", r.Name, err)
	}
	for f, v := range r.Require {
		if !quiz.IsValid(f, v) {
			return fmt.Errorf("%w: rarity rule %q requires %s=%q", ErrInvalidRule, r.Name, f, v)
		}
	}
	return nil
}

// VariantRule flags the alternate display asset when a uniform draw in
// [1, Range] equals Hit. It never changes the outcome.
type VariantRule struct {
	Range int
	Hit   int
}

// Validate checks the draw parameters.
func (v VariantRule) Validate() error {
	if err := validateDraw(v.Range, v.Hit); err != nil {
		return fmt.Errorf("variant rule: %w", err)
	}
	return nil
}

func validateDraw(rng, hit int) error {
	if rng < 1 {
		return fmt.Errorf("%w: range %d must be positive", ErrInvalidRule, rng)
	}
	if hit < 1 || hit > rng {
		return fmt.Errorf("%w: hit %d outside 1..%d", ErrInvalidRule, hit, rng)
	}
	return nil
}

// draw returns true when a uniform value in [1, rng] equals hit.
func draw(r Rand, rng, hit int) bool {
	return r.IntN(rng)+1 == hit
}

// DefaultRules returns the legendary encounter rule: destiny with a
// mysterious, power-seeking profile has a 1 in 20 chance.
func DefaultRules() []RarityRule {
	return []RarityRule{{
		Name: "legendary",
		Require: map[quiz.Field]string{
			quiz.Personality:  "Mysterious & Cunning",
			quiz.CoreStrength: "Raw Power",
		},
		Range: 20,
		Hit:   1,
	}}
}

// DefaultVariant returns the 1 in 100 rare-variant rule.
func DefaultVariant() VariantRule {
	return VariantRule{Range: 100, Hit: 1}
}

// NewRand returns a Rand for seed. Zero seeds from process entropy; any other
// value yields a reproducible sequence. The result is safe for concurrent use.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		return globalRand{}
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed))}
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
