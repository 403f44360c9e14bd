package state

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/loopkit/loopkit/runid"
)

type turnCase struct {
	Tokens int64
	Cost   float64
	Text   string
}

// genTurns produces a small slice of (tokens,cost,signature) turns to replay
// through CompleteTurn, exercising the monotonicity invariants.
func genTurns() gopter.Gen {
	return gen.SliceOfN(8, gen.Struct(reflect.TypeOf(turnCase{}), map[string]gopter.Gen{
		"Tokens": gen.Int64Range(0, 10_000),
		"Cost":   gen.Float64Range(0, 5),
		"Text":   gen.OneConstOf("same", "different", ""),
	}))
}

func TestLoopStateMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("turn/tokens/cost/history are monotonic across replays", prop.ForAll(
		func(turns []turnCase) bool {
			s := Initial(runid.New())
			prevTurn := s.CurrentTurn
			prevTokens := s.TotalTokensUsed
			prevCost := s.EstimatedCost
			prevLen := len(s.TurnHistory)

			for _, tr := range turns {
				s = s.CompleteTurn(tr.Tokens, tr.Cost, false, Signature(tr.Text))
				if s.CurrentTurn < prevTurn {
					return false
				}
				if s.TotalTokensUsed < prevTokens {
					return false
				}
				if s.EstimatedCost < prevCost {
					return false
				}
				if len(s.TurnHistory) != prevLen+1 {
					return false
				}
				prevTurn = s.CurrentTurn
				prevTokens = s.TotalTokensUsed
				prevCost = s.EstimatedCost
				prevLen = len(s.TurnHistory)
			}
			return true
		},
		genTurns(),
	))

	properties.Property("abort is monotonic and idempotent", prop.ForAll(
		func(calls int) bool {
			s := Initial(runid.New())
			for i := 0; i < calls; i++ {
				s = s.Abort()
			}
			return s.AbortSignalled == (calls > 0)
		},
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
