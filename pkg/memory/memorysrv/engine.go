package memorysrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
)

// SystemPrompt supplies the System message used when a window is rebuilt
// from the log or an update carries none.
type SystemPrompt interface {
	SystemMessage() llm.Message
}

// Engine reconciles the window cache with the conversation log on every
// read and write of a conversation's history. It does no locking: callers
// issue at most one read/update pair per conversation at a time.
type Engine struct {
	cache       *WindowCache
	log         memory.Log
	allocator   *TurnAllocator
	prompt      SystemPrompt
	rebuildSize int
	now         func() time.Time
}

type EngineOption func(*Engine)

// WithClock sets the time source for turn timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
		e.cache.now = now
	}
}

func NewEngine(backend memory.Cache, log memory.Log, prompt SystemPrompt, cfg *config.MemoryConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:       NewWindowCache(backend, cfg),
		log:         log,
		allocator:   NewTurnAllocator(log),
		prompt:      prompt,
		rebuildSize: cfg.RebuildSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Messages returns the visible history of a conversation, System first.
// An unknown conversation or an unreadable log yields an empty history.
func (e *Engine) Messages(ctx context.Context, id kernel.ConversationID) ([]llm.Message, error) {
	w, err := e.Window(ctx, id)
	if err != nil || w == nil {
		return nil, err
	}
	return w.Messages(), nil
}

// Window returns the visible window with turn indices, nil when the
// conversation has no history.
func (e *Engine) Window(ctx context.Context, id kernel.ConversationID) (*memory.Window, error) {
	if id.IsEmpty() {
		return nil, memory.ErrConversationIDRequired()
	}
	if w, ok := e.cache.Get(ctx, id); ok {
		return w, nil
	}

	turns, err := e.log.RecentTurns(ctx, id, e.rebuildSize)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("log read failed, returning empty history")
		return nil, nil
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return e.rebuild(ctx, id, e.prompt.SystemMessage(), turns), nil
}

func (e *Engine) rebuild(ctx context.Context, id kernel.ConversationID, system llm.Message, turns []memory.Turn) *memory.Window {
	clean := memory.DropOrphans(turns)
	if dropped := len(turns) - len(clean); dropped > 0 {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"dropped":         dropped,
		}).Info("dropped unpaired tool turns from rebuilt window")
	}
	return e.cache.Replace(ctx, id, system, clean, memory.MaxIndex(turns))
}

// window returns the cached window or rebuilds it from the log. When the
// log cannot be read, it returns an uncached System-only window and false.
func (e *Engine) window(ctx context.Context, id kernel.ConversationID, system llm.Message) (*memory.Window, bool) {
	if w, ok := e.cache.Get(ctx, id); ok {
		return w, true
	}
	turns, err := e.log.RecentTurns(ctx, id, e.rebuildSize)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("log read failed, window unknown")
		return memory.NewWindow(id, system, e.now()), false
	}
	return e.rebuild(ctx, id, system, turns), true
}

// Update accepts the full ordered sequence known to the orchestration loop
// after a step. Only invalid input is reported; backend failures are
// logged and absorbed.
func (e *Engine) Update(ctx context.Context, id kernel.ConversationID, msgs []llm.Message) error {
	if id.IsEmpty() {
		return memory.ErrConversationIDRequired()
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return memory.ErrInvalidMessage().
				WithDetail("position", i).
				WithDetail("reason", err.Error())
		}
	}

	system, found, nonSystem := memory.SplitSystem(msgs)
	if !found {
		system = e.prompt.SystemMessage()
	}
	if len(nonSystem) == 0 {
		return nil
	}

	w, known := e.window(ctx, id, system)
	if !known {
		// Without the window the count diff is meaningless; only the
		// final unit is written and the cache stays cold for a rebuild.
		plan := memory.PlanBlindUpdate(nonSystem)
		e.logPlan(id, plan, true)
		if settled := plan.Settled(); len(settled) > 0 {
			e.persist(ctx, w, settled)
		}
		return nil
	}

	plan := memory.PlanUpdate(nonSystem, w.NonSystemMessages())
	e.logPlan(id, plan, false)

	if plan.DropCachedTail {
		w.DropTail()
	}

	if len(plan.New()) > 0 {
		// Drops a cached pending call that is persisted with its result.
		w.TruncateNonSystem(plan.NewFrom)
	}
	w.Turns[0].Message = system

	if settled := plan.Settled(); len(settled) > 0 {
		e.persist(ctx, w, settled)
	}

	e.cache.AppendIncremental(ctx, w, plan.Messages)
	return nil
}

func (e *Engine) logPlan(id kernel.ConversationID, plan memory.UpdatePlan, blind bool) {
	fields := logx.Fields{
		"conversation_id": id,
		"route":           plan.Route.String(),
		"new":             len(plan.New()),
		"blind":           blind,
	}
	logx.WithFields(fields).Debug("reconciling update")

	for _, d := range plan.Discarded {
		logx.WithFields(fields).
			WithField("call_id", d.CallID).
			WithField("tool", d.Name).
			Info("discarding unanswered tool call")
	}
	if plan.DroppedResults > 0 {
		logx.WithFields(fields).
			WithField("dropped", plan.DroppedResults).
			Warn("dropping tool results without their invocation")
	}
}

// persist writes settled messages one record at a time with consecutive
// indices after the log's max, and appends them to w. A failed write is
// logged and the message stays in the window.
func (e *Engine) persist(ctx context.Context, w *memory.Window, settled []llm.Message) {
	id := w.ConversationID
	next := e.allocator.NextDurable(ctx, id, w)
	now := e.now()

	for i, m := range settled {
		turn := memory.Turn{
			ConversationID: id,
			Index:          next + i,
			Message:        m,
			CreatedAt:      now,
		}
		if err := e.log.Append(ctx, turn); err != nil {
			logx.WithFields(logx.Fields{
				"conversation_id": id,
				"turn_index":      turn.Index,
				"kind":            string(m.Kind),
				"error":           err.Error(),
			}).Warn("log write failed, turn kept in cache only")
		}
		w.Append(turn)
	}
	w.CurrentTurnIndex = next + len(settled) - 1
}

// Delete removes the cached window, then the logged history and the
// conversation record. Both steps always run; a log failure is returned.
func (e *Engine) Delete(ctx context.Context, id kernel.ConversationID) error {
	if id.IsEmpty() {
		return memory.ErrConversationIDRequired()
	}
	if err := e.cache.Delete(ctx, id); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("cache delete failed")
	}
	if err := e.log.DeleteConversation(ctx, id); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("log delete failed, records remain")
		return errx.Wrap(err, "failed to delete conversation history", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return nil
}

// Transcript returns every logged turn of a conversation.
func (e *Engine) Transcript(ctx context.Context, id kernel.ConversationID) ([]memory.Turn, error) {
	turns, err := e.log.Transcript(ctx, id)
	if err != nil {
		return nil, errx.Wrap(err, "failed to read transcript", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return turns, nil
}
