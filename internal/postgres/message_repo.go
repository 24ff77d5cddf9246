package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/dm-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save — единственная точка записи: одна атомарная вставка,
// id и created_at назначает БД.
func (r *MessageRepository) Save(ctx context.Context, senderID, receiverID int64, text string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO dm_messages (sender_id, receiver_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, text, is_read, created_at
	`, senderID, receiverID, text)

	var m domain.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// History возвращает весь диалог между двумя пользователями в порядке
// (created_at, id) по возрастанию. Пара симметрична: (a,b) == (b,a).
func (r *MessageRepository) History(ctx context.Context, userA, userB int64) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, receiver_id, text, is_read, created_at
		FROM dm_messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HistoryPage возвращает страницу диалога с курсорной пагинацией
// (created_at,id DESC), как списки в room-service.
func (r *MessageRepository) HistoryPage(ctx context.Context, userA, userB int64, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT id, sender_id, receiver_id, text, is_read, created_at
		FROM dm_messages
		WHERE ((sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1))
		  AND (
		    $3::timestamptz IS NULL
		    OR created_at < $3
		    OR (created_at = $3 AND id < $4)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, userA, userB, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// MarkRead помечает сообщение прочитанным. Только получатель.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, readerID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE dm_messages SET is_read = true
		WHERE id = $1 AND receiver_id = $2
	`, messageID, readerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}
