package governor

import (
	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

func judgeInput(id runid.RunID, text string, cfg policy.Config, s state.LoopState) judge.Input {
	return judge.Input{
		RunID:            id.String(),
		ResponseText:     text,
		WorkingDirectory: cfg.WorkingDirectory,
		Turn:             s.CurrentTurn,
	}
}
