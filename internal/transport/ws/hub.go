package ws

import (
	"sync"

	"github.com/samber/lo"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	ID() string
	UserID() int64
}

type Hub struct {
	mu    sync.RWMutex
	users map[int64]map[Conn]struct{} // userID -> set of connections
}

func NewHub() *Hub {
	return &Hub{users: make(map[int64]map[Conn]struct{})}
}

func (h *Hub) Add(userID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.users[userID]
	if !ok {
		cs = make(map[Conn]struct{})
		h.users[userID] = cs
	}
	cs[c] = struct{}{}
}

// Remove идемпотентен: удаление отсутствующей пары — no-op.
func (h *Hub) Remove(userID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cs, ok := h.users[userID]; ok {
		delete(cs, c)
		if len(cs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Conns возвращает снапшот живых соединений пользователя.
func (h *Hub) Conns(userID int64) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cs, ok := h.users[userID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(cs))
	for c := range cs {
		out = append(out, c)
	}
	return out
}

// Fanout пушит msg в объединение множеств соединений userIDs.
// Соединение, зарегистрированное под обоими участниками, получает
// ровно один пуш: объединение дедуплицируется по id соединения.
// Отправка — best-effort и происходит уже без блокировки реестра.
func (h *Hub) Fanout(msg Message, userIDs ...int64) {
	h.mu.RLock()
	var union []Conn
	for _, uid := range userIDs {
		for c := range h.users[uid] {
			union = append(union, c)
		}
	}
	h.mu.RUnlock()

	union = lo.UniqBy(union, func(c Conn) string { return c.ID() })
	for _, c := range union {
		_ = c.Send(msg) // best-effort
	}
}
