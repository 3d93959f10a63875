package conversationsrv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/fsx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
)

// ConversationService owns conversation metadata and cascades lifecycle
// operations into the memory history.
type ConversationService struct {
	repo    conversation.Repository
	history conversation.History
	files   fsx.FileWriter
	now     func() time.Time
}

func NewConversationService(
	repo conversation.Repository,
	history conversation.History,
	files fsx.FileWriter,
) *ConversationService {
	return &ConversationService{
		repo:    repo,
		history: history,
		files:   files,
		now:     time.Now,
	}
}

// WithClock replaces the time source. It returns the service for chaining.
func (s *ConversationService) WithClock(now func() time.Time) *ConversationService {
	s.now = now
	return s
}

// Start creates a new conversation for the caller.
func (s *ConversationService) Start(ctx context.Context, auth *kernel.AuthContext) (*conversation.Conversation, error) {
	if auth == nil || auth.OwnerID.IsEmpty() {
		return nil, conversation.ErrForbidden()
	}
	c := conversation.New(auth.OwnerID, s.now())
	if err := s.repo.Create(ctx, *c); err != nil {
		return nil, err
	}
	logx.WithFields(logx.Fields{
		"conversation_id": c.ID,
		"owner_id":        c.OwnerID,
	}).Debug("conversation started")
	return c, nil
}

// Get returns a conversation owned by the caller.
func (s *ConversationService) Get(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.Conversation, error) {
	if id.IsEmpty() {
		return nil, memory.ErrConversationIDRequired()
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if auth == nil || !c.IsOwnedBy(auth.OwnerID) {
		return nil, conversation.ErrForbidden().WithDetail("conversation_id", id.String())
	}
	return c, nil
}

// EnsureOwned returns the caller's conversation with the given id, creating
// it when it does not exist yet and claiming it when the message log created
// it without an owner.
func (s *ConversationService) EnsureOwned(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.Conversation, error) {
	if id.IsEmpty() {
		return nil, memory.ErrConversationIDRequired()
	}
	if auth == nil || auth.OwnerID.IsEmpty() {
		return nil, conversation.ErrForbidden()
	}

	c, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, conversation.ErrNotFound()):
		now := s.now()
		c = &conversation.Conversation{
			ID:             id,
			OwnerID:        auth.OwnerID,
			Title:          conversation.DefaultTitle(now),
			CreatedAt:      now,
			LastActivityAt: now,
		}
		if err := s.repo.Create(ctx, *c); err != nil {
			return nil, err
		}
		return c, nil
	case err != nil:
		return nil, err
	}

	if c.IsUnclaimed() {
		if err := s.repo.Claim(ctx, id, auth.OwnerID); err != nil {
			return nil, err
		}
		c.OwnerID = auth.OwnerID
		return c, nil
	}
	if !c.IsOwnedBy(auth.OwnerID) {
		return nil, conversation.ErrForbidden().WithDetail("conversation_id", id.String())
	}
	return c, nil
}

// Resolve returns the caller's conversation for id. An empty, unknown or
// foreign id starts a new conversation instead.
func (s *ConversationService) Resolve(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.Conversation, error) {
	if id.IsEmpty() {
		return s.Start(ctx, auth)
	}
	c, err := s.Get(ctx, auth, id)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, conversation.ErrNotFound()) || errors.Is(err, conversation.ErrForbidden()) {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"reason":          err.Error(),
		}).Info("starting a new conversation in place of an unusable id")
		return s.Start(ctx, auth)
	}
	return nil, err
}

func (s *ConversationService) List(ctx context.Context, auth *kernel.AuthContext) ([]*conversation.Conversation, error) {
	if auth == nil || auth.OwnerID.IsEmpty() {
		return nil, conversation.ErrForbidden()
	}
	return s.repo.ListByOwner(ctx, auth.OwnerID)
}

func (s *ConversationService) Rename(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID, title string) (*conversation.Conversation, error) {
	c, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	if err := c.Rename(title); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTitle(ctx, id, c.Title); err != nil {
		return nil, err
	}
	return c, nil
}

// Touch records activity on a conversation. Failures are logged only.
func (s *ConversationService) Touch(ctx context.Context, id kernel.ConversationID) {
	if err := s.repo.Touch(ctx, id, s.now()); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("failed to touch conversation")
	}
}

// Delete removes the conversation's history and then its metadata. A
// history failure is logged and the metadata delete still runs, which
// cascades to any remaining message rows.
func (s *ConversationService) Delete(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) error {
	if _, err := s.Get(ctx, auth, id); err != nil {
		return err
	}
	if err := s.history.Delete(ctx, id); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("history delete failed, relying on metadata cascade")
	}
	return s.repo.Delete(ctx, id)
}

// TranscriptPath is where an export of id owned by owner is written.
func TranscriptPath(owner kernel.OwnerID, id kernel.ConversationID) string {
	return fsx.Join("transcripts", owner.String(), id.String()+".json")
}

// Export writes the full durable transcript as JSON and returns where it went.
func (s *ConversationService) Export(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.ExportResponse, error) {
	c, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.history.Transcript(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := conversation.Transcript{
		Conversation: *c,
		ExportedAt:   s.now().UTC(),
		Entries:      make([]conversation.TranscriptEntry, 0, len(turns)),
	}
	for _, t := range turns {
		doc.Entries = append(doc.Entries, entryFor(t))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, conversation.ErrExportFailed().WithCause(err)
	}
	path := TranscriptPath(c.OwnerID, c.ID)
	if err := s.files.WriteFile(ctx, path, data); err != nil {
		return nil, errx.Wrap(err, "failed to write transcript", errx.TypeExternal).
			WithDetail("conversation_id", id.String()).
			WithDetail("path", path)
	}

	logx.WithFields(logx.Fields{
		"conversation_id": id,
		"path":            path,
		"turns":           len(turns),
	}).Info("transcript exported")

	return &conversation.ExportResponse{
		ConversationID: id,
		Path:           path,
		Turns:          len(turns),
	}, nil
}

func entryFor(t memory.Turn) conversation.TranscriptEntry {
	e := conversation.TranscriptEntry{
		TurnIndex: t.Index,
		Kind:      string(t.Message.Kind),
		Text:      t.Message.Text,
		CreatedAt: t.CreatedAt,
	}
	if inv := t.Message.Invocation; inv != nil {
		e.CallID = inv.CallID
		e.Name = inv.Name
		e.Arguments = inv.Arguments
	}
	if res := t.Message.Result; res != nil {
		e.CallID = res.CallID
		e.Name = res.Name
		e.Content = res.Content
	}
	return e
}
