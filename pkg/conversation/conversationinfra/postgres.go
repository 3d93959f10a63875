package conversationinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresConversationRepository implements conversation.Repository on PostgreSQL.
type PostgresConversationRepository struct {
	db *sqlx.DB
}

func NewPostgresConversationRepository(db *sqlx.DB) conversation.Repository {
	return &PostgresConversationRepository{
		db: db,
	}
}

// Create inserts a conversation. A row already created by the message log
// without an owner is claimed instead.
func (r *PostgresConversationRepository) Create(ctx context.Context, c conversation.Conversation) error {
	query := `
		INSERT INTO conversations (id, owner_id, title, created_at, last_activity_at)
		VALUES (:id, :owner_id, :title, :created_at, :last_activity_at)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title
		WHERE conversations.owner_id = ''`

	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return errx.Wrap(err, "failed to create conversation", errx.TypeInternal).
			WithDetail("conversation_id", c.ID.String())
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return conversation.ErrForbidden().WithDetail("conversation_id", c.ID.String())
	}
	return nil
}

func (r *PostgresConversationRepository) FindByID(ctx context.Context, id kernel.ConversationID) (*conversation.Conversation, error) {
	query := `
		SELECT id, owner_id, title, created_at, last_activity_at
		FROM conversations
		WHERE id = $1`

	var c conversation.Conversation
	err := r.db.GetContext(ctx, &c, query, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound().WithDetail("conversation_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return &c, nil
}

// ListByOwner returns the owner's conversations, newest first.
func (r *PostgresConversationRepository) ListByOwner(ctx context.Context, owner kernel.OwnerID) ([]*conversation.Conversation, error) {
	query := `
		SELECT id, owner_id, title, created_at, last_activity_at
		FROM conversations
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	var rows []conversation.Conversation
	if err := r.db.SelectContext(ctx, &rows, query, owner.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list conversations", errx.TypeInternal).
			WithDetail("owner_id", owner.String())
	}

	result := make([]*conversation.Conversation, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

func (r *PostgresConversationRepository) UpdateTitle(ctx context.Context, id kernel.ConversationID, title string) error {
	query := `UPDATE conversations SET title = $2 WHERE id = $1`
	return r.execOne(ctx, "failed to update conversation title", query, id, title)
}

// Claim sets the owner of a conversation that has none.
func (r *PostgresConversationRepository) Claim(ctx context.Context, id kernel.ConversationID, owner kernel.OwnerID) error {
	query := `UPDATE conversations SET owner_id = $2 WHERE id = $1 AND owner_id = ''`

	res, err := r.db.ExecContext(ctx, query, id.String(), owner.String())
	if err != nil {
		return errx.Wrap(err, "failed to claim conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to claim conversation", errx.TypeInternal)
	}
	if n == 0 {
		return conversation.ErrForbidden().WithDetail("conversation_id", id.String())
	}
	return nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, id kernel.ConversationID, at time.Time) error {
	query := `UPDATE conversations SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1`
	return r.execOne(ctx, "failed to touch conversation", query, id, at)
}

// Delete removes the metadata row. Deleting a missing conversation is not an error.
func (r *PostgresConversationRepository) Delete(ctx context.Context, id kernel.ConversationID) error {
	query := `DELETE FROM conversations WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return nil
}

func (r *PostgresConversationRepository) Exists(ctx context.Context, id kernel.ConversationID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id.String()); err != nil {
		return false, errx.Wrap(err, "failed to check conversation existence", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return exists, nil
}

func (r *PostgresConversationRepository) execOne(ctx context.Context, msg, query string, id kernel.ConversationID, arg any) error {
	res, err := r.db.ExecContext(ctx, query, id.String(), arg)
	if err != nil {
		return errx.Wrap(err, msg, errx.TypeInternal).WithDetail("conversation_id", id.String())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, msg, errx.TypeInternal)
	}
	if n == 0 {
		return conversation.ErrNotFound().WithDetail("conversation_id", id.String())
	}
	return nil
}
