// Package quiz defines the quiz surface: the categorical prompts a player
// answers, their closed value sets, and the feedback a player gives back.
package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field names a categorical quiz answer. The names double as storage column
// names and configuration keys.
type Field string

// Quiz fields in canonical order.
const (
	Environment  Field = "environment"
	Personality  Field = "personality"
	CoreStrength Field = "core_strength"
	BattleStyle  Field = "battle_style"
	SocialStyle  Field = "social_style"
)

// Sentinel kinds for quiz validation.
var (
	ErrUnknownField    = errors.New("unknown quiz field")
	ErrUnknownValue    = errors.New("unknown quiz value")
	ErrMissingValue    = errors.New("missing quiz value")
	ErrInvalidJudgment = errors.New("invalid judgment")
)

// Question is one categorical prompt with its closed set of choices.
type Question struct {
	Field    Field    `json:"field"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices"`
	Optional bool     `json:"optional"`
}

// Surface is the full quiz as presented to a player.
type Surface struct {
	Questions    []Question `json:"questions"`
	DestinyLabel string     `json:"destiny_label"`
	DestinyHelp  string     `json:"destiny_help"`
}

var questions = []Question{ //nolint:gochecknoglobals // fixed quiz surface
	{
		Field:   Environment,
		Prompt:  "Which environment do you feel most at home in?",
		Choices: []string{"Forests & Jungles", "Oceans & Lakes", "Mountains & Caves", "Cities & Plains", "Mysterious Places"},
	},
	{
		Field:   Personality,
		Prompt:  "Which best describes your personality?",
		Choices: []string{"Bold & Competitive", "Calm & Loyal", "Mysterious & Cunning", "Energetic & Free-Spirited", "Adaptable & Friendly"},
	},
	{
		Field:   CoreStrength,
		Prompt:  "What do you value most in a partner?",
		Choices: []string{"Raw Power", "Resilience", "Speed & Evasion", "Versatility"},
	},
	{
		Field:   BattleStyle,
		Prompt:  "How do you approach challenges?",
		Choices: []string{"Physical & Head-on", "Strategic & Long-Range", "Quick & Agile", "Balanced & Versatile"},
	},
	{
		Field:    SocialStyle,
		Prompt:   "How do you like to spend time with others?",
		Choices:  []string{"Lone Wolf", "Close-Knit Pack", "Social Butterfly", "Natural Leader"},
		Optional: true,
	},
}

// Questions returns the quiz prompts in canonical order. The returned slice
// is a copy.
func Questions() []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out
}

// GetSurface returns the quiz including the destiny opt-in.
func GetSurface() Surface {
	return Surface{
		Questions:    Questions(),
		DestinyLabel: "Do you feel a touch of destiny?",
		DestinyHelp:  "Checking this may lead to a legendary encounter...",
	}
}

// Fields returns the quiz fields in canonical order.
func Fields() []Field {
	out := make([]Field, len(questions))
	for i, q := range questions {
		out[i] = q.Field
	}
	return out
}

// Choices returns the closed value set of f.
func Choices(f Field) ([]string, error) {
	for _, q := range questions {
		if q.Field == f {
			return append([]string(nil), q.Choices...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// IsValid reports whether value belongs to the value set of f.
func IsValid(f Field, value string) bool {
	choices, err := Choices(f)
	if err != nil {
		return false
	}
	for _, c := range choices {
		if c == value {
			return true
		}
	}
	return false
}

// Answers is one player's submission. Values are kept as given so unseen
// categories can still flow through the encoder.
type Answers struct {
	Environment  string `json:"environment"`
	Personality  string `json:"personality"`
	CoreStrength string `json:"core_strength"`
	BattleStyle  string `json:"battle_style"`
	SocialStyle  string `json:"social_style,omitempty"`
	Destiny      bool   `json:"destiny,omitempty"`
}

// Get returns the value answered for f, or "" when f is unknown.
func (a Answers) Get(f Field) string {
	switch f {
	case Environment:
		return a.Environment
	case Personality:
		return a.Personality
	case CoreStrength:
		return a.CoreStrength
	case BattleStyle:
		return a.BattleStyle
	case SocialStyle:
		return a.SocialStyle
	default:
		return ""
	}
}

// Set assigns value to f.
func (a *Answers) Set(f Field, value string) error {
	switch f {
	case Environment:
		a.Environment = value
	case Personality:
		a.Personality = value
	case CoreStrength:
		a.CoreStrength = value
	case BattleStyle:
		a.BattleStyle = value
	case SocialStyle:
		a.SocialStyle = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

// Normalize trims surrounding whitespace from every value.
func (a Answers) Normalize() Answers {
	a.Environment = strings.TrimSpace(a.Environment)
	a.Personality = strings.TrimSpace(a.Personality)
	a.CoreStrength = strings.TrimSpace(a.CoreStrength)
	a.BattleStyle = strings.TrimSpace(a.BattleStyle)
	a.SocialStyle = strings.TrimSpace(a.SocialStyle)
	return a
}

// Validate checks every required field is present and every present value
// is a known choice. Optional fields may be empty.
func (a Answers) Validate() error {
	var errs []error
	for _, q := range questions {
		v := a.Get(q.Field)
		switch {
		case v == "" && q.Optional:
		case v == "":
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingValue, q.Field))
		case !IsValid(q.Field, v):
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrUnknownValue, q.Field, v))
		}
	}
	return errors.Join(errs...)
}

// Judgment is the player's verdict on a shown outcome.
type Judgment string

// Closed set of judgments.
const (
	JudgmentMatch Judgment = "match"
	JudgmentClose Judgment = "close"
	JudgmentWrong Judgment = "wrong"
)

// Judgments returns every valid judgment.
func Judgments() []Judgment {
	return []Judgment{JudgmentMatch, JudgmentClose, JudgmentWrong}
}

// ParseJudgment validates s as a judgment.
func ParseJudgment(s string) (Judgment, error) {
	switch j := Judgment(strings.ToLower(strings.TrimSpace(s))); j {
	case JudgmentMatch, JudgmentClose, JudgmentWrong:
		return j, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidJudgment, s)
	}
}

// FeedbackRecord is an append-only row handed to the feedback sink.
type FeedbackRecord struct {
	SubmissionID string    `json:"submission_id,omitempty"`
	Answers      Answers   `json:"answers"`
	Outcome      string    `json:"outcome"`
	Judgment     Judgment  `json:"judgment"`
	RecordedAt   time.Time `json:"recorded_at"`
}
