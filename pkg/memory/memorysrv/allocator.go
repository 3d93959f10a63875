package memorysrv

import (
	"context"

	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
)

// TurnAllocator hands out turn indices. Durable turns are numbered from
// the log's max index; the window counter is only a hint.
type TurnAllocator struct {
	log memory.Log
}

func NewTurnAllocator(log memory.Log) *TurnAllocator {
	return &TurnAllocator{log: log}
}

// NextDurable returns the index of the next turn written to the log.
// When the log cannot be read it falls back to the window counter.
func (a *TurnAllocator) NextDurable(ctx context.Context, id kernel.ConversationID, w *memory.Window) int {
	hint := 0
	if w != nil {
		hint = w.CurrentTurnIndex
	}

	logMax, err := a.log.MaxTurnIndex(ctx, id)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"hint":            hint,
			"error":           err.Error(),
		}).Warn("max turn index unavailable, using cache counter")
		return hint + 1
	}

	if w != nil && hint < logMax {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"cache_counter":   hint,
			"log_max":         logMax,
		}).Debug("cache counter behind log, log wins")
	}
	return logMax + 1
}
