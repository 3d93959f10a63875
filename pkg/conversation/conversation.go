package conversation

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// ============================================================================
// Conversation Entity
// ============================================================================

const MaxTitleLength = 200

// Conversation is the metadata record of one chat. Its history lives in the
// memory log under the same id.
type Conversation struct {
	ID             kernel.ConversationID `db:"id" json:"id"`
	OwnerID        kernel.OwnerID        `db:"owner_id" json:"owner_id"`
	Title          string                `db:"title" json:"title"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	LastActivityAt time.Time             `db:"last_activity_at" json:"last_activity_at"`
}

// New creates a conversation owned by owner with a default title.
func New(owner kernel.OwnerID, now time.Time) *Conversation {
	return &Conversation{
		ID:             kernel.NewConversationID(),
		OwnerID:        owner,
		Title:          DefaultTitle(now),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// DefaultTitle is "New chat_MMdd_HH:mm".
func DefaultTitle(now time.Time) string {
	return "New chat_" + now.Format("0102_15:04")
}

// Domain methods
func (c *Conversation) IsOwnedBy(owner kernel.OwnerID) bool {
	return !c.OwnerID.IsEmpty() && c.OwnerID == owner
}

// IsUnclaimed reports a row created by the message log before any owner
// was recorded.
func (c *Conversation) IsUnclaimed() bool {
	return c.OwnerID.IsEmpty()
}

func (c *Conversation) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrInvalidTitle().WithDetail("max_length", MaxTitleLength)
	}
	c.Title = title
	return nil
}

func (c *Conversation) Touch(now time.Time) {
	if now.After(c.LastActivityAt) {
		c.LastActivityAt = now
	}
}

// ============================================================================
// DTOs
// ============================================================================

type RenameRequest struct {
	Title string `json:"title"`
}

type ExportResponse struct {
	ConversationID kernel.ConversationID `json:"conversation_id"`
	Path           string                `json:"path"`
	Turns          int                   `json:"turns"`
}

// TranscriptEntry is one durable record in an exported transcript.
type TranscriptEntry struct {
	TurnIndex int       `json:"turn_index"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Arguments string    `json:"arguments,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is the document written by an export.
type Transcript struct {
	Conversation Conversation      `json:"conversation"`
	ExportedAt   time.Time         `json:"exported_at"`
	Entries      []TranscriptEntry `json:"entries"`
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("CONVERSATION")

var (
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation not found")
	CodeForbidden    = ErrRegistry.Register("FORBIDDEN", errx.TypeAuthorization, http.StatusForbidden, "Conversation belongs to another owner")
	CodeInvalidTitle = ErrRegistry.Register("INVALID_TITLE", errx.TypeValidation, http.StatusBadRequest, "Title must be non-empty and at most 200 characters")
	CodeExportFailed = ErrRegistry.Register("EXPORT_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Transcript export failed")
)

func ErrNotFound() *errx.Error {
	return ErrRegistry.New(CodeNotFound)
}

func ErrForbidden() *errx.Error {
	return ErrRegistry.New(CodeForbidden)
}

func ErrInvalidTitle() *errx.Error {
	return ErrRegistry.New(CodeInvalidTitle)
}

func ErrExportFailed() *errx.Error {
	return ErrRegistry.New(CodeExportFailed)
}
