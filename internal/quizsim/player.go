package quizsim

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/profiler/internal/domain/quiz"
)

// skipOptional is the chance a player leaves an optional question blank.
const skipOptional = 0.2

// Player is one simulated quiz taker.
type Player struct {
	SubmissionID string
	Answers      quiz.Answers
	// Verdict decides the judgment a player gives a decided outcome.
	Verdict float64
	// Resend makes the player post its feedback twice.
	Resend bool
}

// Judgment maps the player's verdict roll onto a judgment.
func (p Player) Judgment(matchRate float64) quiz.Judgment {
	switch {
	case p.Verdict < matchRate:
		return quiz.JudgmentMatch
	case p.Verdict < matchRate+(1-matchRate)/2:
		return quiz.JudgmentClose
	default:
		return quiz.JudgmentWrong
	}
}

// generatePlayers draws n players against surface. Identical seeds give
// identical answers.
func generatePlayers(cfg Config, surface quiz.Surface) []Player {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rnd := rand.New(rand.NewPCG(seed, seed>>1|1))

	players := make([]Player, cfg.Players)
	for i := range players {
		var a quiz.Answers
		for _, q := range surface.Questions {
			if len(q.Choices) == 0 || (q.Optional && rnd.Float64() < skipOptional) {
				continue
			}
			_ = a.Set(q.Field, q.Choices[rnd.IntN(len(q.Choices))])
		}
		a.Destiny = rnd.Float64() < cfg.DestinyRate
		players[i] = Player{
			SubmissionID: uuid.NewString(),
			Answers:      a,
			Verdict:      rnd.Float64(),
			Resend:       rnd.Float64() < cfg.Repeat,
		}
	}
	return players
}
