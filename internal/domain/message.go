package domain

import "time"

type Message struct {
	ID         int64     `db:"id"`
	SenderID   int64     `db:"sender_id"`
	ReceiverID int64     `db:"receiver_id"`
	Text       string    `db:"text"`
	IsRead     bool      `db:"is_read"`
	CreatedAt  time.Time `db:"created_at"`
}

// HasParticipant проверяет, что userID — один из двух участников диалога.
func (m Message) HasParticipant(userID int64) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
