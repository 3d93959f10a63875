package memoryinfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresLog implements memory.Log with one row per turn.
type PostgresLog struct {
	db *sqlx.DB
}

func NewPostgresLog(db *sqlx.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

type turnRow struct {
	ConversationID string    `db:"conversation_id"`
	TurnIndex      int       `db:"turn_index"`
	Kind           string    `db:"kind"`
	Payload        []byte    `db:"payload"`
	CreatedAt      time.Time `db:"created_at"`
}

// Append records one turn. The conversation row is created on the first
// turn and its last activity moved forward on every turn.
func (l *PostgresLog) Append(ctx context.Context, turn memory.Turn) error {
	payload, err := json.Marshal(memory.EncodePayload(turn.Message))
	if err != nil {
		return errx.Wrap(err, "failed to encode turn payload", errx.TypeInternal).
			WithDetail("conversation_id", turn.ConversationID.String())
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	touch := `
		INSERT INTO conversations (id, created_at, last_activity_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET last_activity_at = EXCLUDED.last_activity_at`
	if _, err := tx.ExecContext(ctx, touch, turn.ConversationID.String(), turn.CreatedAt); err != nil {
		return errx.Wrap(err, "failed to upsert conversation", errx.TypeInternal).
			WithDetail("conversation_id", turn.ConversationID.String())
	}

	insert := `
		INSERT INTO chat_messages (id, conversation_id, turn_index, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, insert,
		uuid.NewString(),
		turn.ConversationID.String(),
		turn.Index,
		string(turn.Message.Kind),
		string(payload),
		turn.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return memory.ErrDuplicateTurn().
				WithDetail("conversation_id", turn.ConversationID.String()).
				WithDetail("turn_index", turn.Index)
		}
		return errx.Wrap(err, "failed to insert turn", errx.TypeInternal).
			WithDetail("conversation_id", turn.ConversationID.String()).
			WithDetail("turn_index", turn.Index)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit turn", errx.TypeInternal)
	}
	return nil
}

// RecentTurns fetches the newest rows first and reverses them.
func (l *PostgresLog) RecentTurns(ctx context.Context, id kernel.ConversationID, limit int) ([]memory.Turn, error) {
	query := `
		SELECT conversation_id, turn_index, kind, payload, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY turn_index DESC
		LIMIT $2`

	var rows []turnRow
	if err := l.db.SelectContext(ctx, &rows, query, id.String(), limit); err != nil {
		return nil, errx.Wrap(err, "failed to read recent turns", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	turns := make([]memory.Turn, len(rows))
	for i, r := range rows {
		turns[len(rows)-1-i] = r.toTurn()
	}
	return turns, nil
}

func (l *PostgresLog) MaxTurnIndex(ctx context.Context, id kernel.ConversationID) (int, error) {
	query := `SELECT COALESCE(MAX(turn_index), 0) FROM chat_messages WHERE conversation_id = $1`

	var maxIndex int
	if err := l.db.GetContext(ctx, &maxIndex, query, id.String()); err != nil {
		return 0, errx.Wrap(err, "failed to read max turn index", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return maxIndex, nil
}

func (l *PostgresLog) Transcript(ctx context.Context, id kernel.ConversationID) ([]memory.Turn, error) {
	query := `
		SELECT conversation_id, turn_index, kind, payload, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY turn_index ASC`

	var rows []turnRow
	if err := l.db.SelectContext(ctx, &rows, query, id.String()); err != nil {
		return nil, errx.Wrap(err, "failed to read transcript", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	turns := make([]memory.Turn, len(rows))
	for i, r := range rows {
		turns[i] = r.toTurn()
	}
	return turns, nil
}

func (l *PostgresLog) DeleteConversation(ctx context.Context, id kernel.ConversationID) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE conversation_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete turns", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit delete", errx.TypeInternal)
	}
	return nil
}

func (r turnRow) toTurn() memory.Turn {
	var p memory.Payload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": r.ConversationID,
			"turn_index":      r.TurnIndex,
			"error":           err.Error(),
		}).Warn("stored payload unreadable")
		p = memory.Payload{}
	}
	msg, ok := memory.DecodeMessage(llm.Kind(r.Kind), p)
	if !ok {
		logx.WithFields(logx.Fields{
			"conversation_id": r.ConversationID,
			"turn_index":      r.TurnIndex,
			"kind":            r.Kind,
		}).Warn("malformed stored message replaced by placeholder")
	}
	return memory.Turn{
		ConversationID: kernel.ConversationID(r.ConversationID),
		Index:          r.TurnIndex,
		Message:        msg,
		CreatedAt:      r.CreatedAt,
	}
}

var _ memory.Log = (*PostgresLog)(nil)
