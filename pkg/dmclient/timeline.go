// Package dmclient содержит клиентскую часть catch-up протокола:
// слияние снапшота истории с live-пушами. Fetch истории и подписка
// на пуши не упорядочены атомарно, поэтому сообщение может прийти
// из обоих источников — дедуплицируем по id и пересортировываем.
package dmclient

import (
	"sort"
	"sync"
	"time"
)

// Message — то, что клиент видит на проводе (REST item или delivered-пуш).
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	IsRead     bool
	CreatedAt  time.Time
}

type Timeline struct {
	mu   sync.Mutex
	seen map[int64]struct{}
	msgs []Message
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[int64]struct{})}
}

// Seed вливает снапшот истории. Уже применённые пуши не дублируются.
func (t *Timeline) Seed(ms []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range ms {
		t.add(m)
	}
}

// Apply применяет live-пуш. Возвращает false, если сообщение уже есть.
func (t *Timeline) Apply(m Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.add(m)
}

// Messages возвращает копию ленты, отсортированную по (created_at, id).
// Порядок вставки не важен: сортируем при чтении, а не полагаемся
// на порядок прихода.
func (t *Timeline) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.msgs)
}

func (t *Timeline) add(m Message) bool {
	if _, ok := t.seen[m.ID]; ok {
		return false
	}
	t.seen[m.ID] = struct{}{}
	t.msgs = append(t.msgs, m)
	return true
}
