package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/dm-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type DialogSvc interface {
	Send(ctx context.Context, senderID, receiverID int64, text string) (*domain.Message, error)
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	dialogSvc DialogSvc

	pingEvery      time.Duration
	maxMessageSize int64
}

func NewServer(hub *Hub, dialog DialogSvc) *Server {
	return &Server{
		hub:       hub,
		dialogSvc: dialog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:      15 * time.Second,
		maxMessageSize: 1 << 20,
	}
}

func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

func (s *Server) SetMaxMessageSize(n int64) {
	if n > 0 {
		s.maxMessageSize = n
	}
}

// WS endpoint: GET /ws?access_token=...&user_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accessToken := strings.TrimSpace(q.Get("access_token"))
	userIDStr := strings.TrimSpace(q.Get("user_id"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || uid <= 0 {
		http.Error(w, "invalid user_id", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	c := newWsConn(conn, uid)

	// Собственная identity регистрируется сразу: реестр живёт только
	// в памяти процесса и пересобирается с нуля на каждом реконнекте.
	s.hub.Add(uid, c)
	c.interests[uid] = struct{}{}

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	for id := range c.interests {
		s.hub.Remove(id, c)
	}

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", uid, "conn", c.ID(), "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(s.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeRegisterInterest:
			s.handleInterest(c, msg.Payload, true)
		case TypeUnregisterInterest:
			s.handleInterest(c, msg.Payload, false)
		case TypeSend:
			s.handleSend(ctx, c, msg.Payload)
		default:
			// ignore
		}
	}
}

// handleInterest — bookkeeping реестра. Сервер регистрирует только
// verified identity соединения: интерес к чужому user_id не даёт
// пушей чужих диалогов.
func (s *Server) handleInterest(c *wsConn, payload interface{}, add bool) {
	var p InterestPayload
	if decode(payload, &p) != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeBadPayload, Message: "bad interest payload"}})
		return
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(p.UserID), 10, 64)
	if err != nil || uid <= 0 {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeBadPayload, Message: "invalid user_id"}})
		return
	}
	if uid != c.userID {
		slog.Warn("ws interest in foreign user rejected", "user", c.userID, "requested", uid, "conn", c.ID())
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeForbidden, Message: "interest allowed only for own user id"}})
		return
	}

	if add {
		s.hub.Add(uid, c)
		c.interests[uid] = struct{}{}
	} else {
		s.hub.Remove(uid, c)
		delete(c.interests, uid)
	}
}

func (s *Server) handleSend(ctx context.Context, c *wsConn, payload interface{}) {
	var p SendPayload
	if decode(payload, &p) != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeBadPayload, Message: "bad send payload"}})
		return
	}
	receiverID, err := strconv.ParseInt(strings.TrimSpace(p.ReceiverID), 10, 64)
	if err != nil || receiverID <= 0 {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeInvalidMessage, Message: "invalid receiver_id"}})
		return
	}

	// sender — всегда verified identity соединения, не поле payload-а.
	m, err := s.dialogSvc.Send(ctx, c.userID, receiverID, p.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage),
			errors.Is(err, domain.ErrMessageTooLong),
			errors.Is(err, domain.ErrInvalidUser):
			_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeInvalidMessage, Message: err.Error()}})
		default:
			// сообщение не durable: никакой рассылки, даже отправителю
			slog.Warn("ws send save failed", "sender", c.userID, "receiver", receiverID, "err", err)
			_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Code: CodeDeliveryFailed, Message: "message was not saved"}})
		}
		return
	}

	// ЕДИНЫЙ fanout обоим участникам (включая отправителя), строго после записи.
	s.Delivered(m)

	// Лёгкий ACK только отправителю, чтобы снять pending на клиенте.
	_ = c.Send(Message{
		Type:    TypeSendAck,
		Payload: SendAckPayload{MessageID: strconv.FormatInt(m.ID, 10)},
	})
}

// Delivered пушит сохранённое сообщение в соединения обоих участников.
// Используется и ws-путём, и REST-отправкой.
func (s *Server) Delivered(m *domain.Message) {
	s.hub.Fanout(Message{Type: TypeDelivered, Payload: DeliveredPayload{Message: toItem(m)}}, m.SenderID, m.ReceiverID)
	slog.Debug("ws delivered", "dialog", domain.ConversationKey(m.SenderID, m.ReceiverID), "id", m.ID)
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func toItem(m *domain.Message) MessageItem {
	return MessageItem{
		ID:         strconv.FormatInt(m.ID, 10),
		SenderID:   strconv.FormatInt(m.SenderID, 10),
		ReceiverID: strconv.FormatInt(m.ReceiverID, 10),
		Text:       m.Text,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	id     string
	userID int64

	// interests трогает только goroutine readLoop-а и teardown после неё
	interests map[int64]struct{}

	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, userID int64) *wsConn {
	return &wsConn{
		conn:      c,
		id:        uuid.NewString(),
		userID:    userID,
		interests: make(map[int64]struct{}),
		sendMu:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) ID() string    { return c.id }
func (c *wsConn) UserID() int64 { return c.userID }
