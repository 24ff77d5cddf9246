package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/dm-service/internal/domain"
	"github.com/cwrk-planet/dm-service/internal/postgres"
	"github.com/cwrk-planet/dm-service/internal/service"
	httpmw "github.com/cwrk-planet/dm-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

// Pusher фанаутит уже сохранённое сообщение в живые соединения.
// Реализация — ws.Server; REST-отправка тоже должна дойти до открытых табов.
type Pusher interface {
	Delivered(m *domain.Message)
}

type Handler struct {
	dialogSvc *service.DialogService
	pusher    Pusher
}

func NewHandler(dialog *service.DialogService, pusher Pusher) *Handler {
	return &Handler{
		dialogSvc: dialog,
		pusher:    pusher,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	callerID := httpmw.UserIDFromCtx(r.Context())
	if callerID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("handler.SendMessage.Decode:", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	receiverID, err := strconv.ParseInt(req.ReceiverID, 10, 64)
	if err != nil || receiverID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid receiver_id"})
		return
	}

	m, err := h.dialogSvc.Send(r.Context(), callerID, receiverID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage),
			errors.Is(err, domain.ErrMessageTooLong),
			errors.Is(err, domain.ErrInvalidUser):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("handler.SendMessage:", slog.Any("err", err))
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "message was not saved"})
		}
		return
	}

	if h.pusher != nil {
		h.pusher.Delivered(m)
	}

	writeJSON(w, http.StatusCreated, toItem(m))
}

// GET /dialogs/{id}/messages?after=&limit=
//
// Без параметров — весь диалог по возрастанию (начальная загрузка и
// catch-up после реконнекта). С limit/after — страница по убыванию с
// курсором, как списки в room-service.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	callerID := httpmw.UserIDFromCtx(r.Context())
	if callerID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	counterpartID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || counterpartID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid dialog user id"})
		return
	}

	after := r.URL.Query().Get("after")
	limitStr := r.URL.Query().Get("limit")

	if after == "" && limitStr == "" {
		items, err := h.dialogSvc.History(r.Context(), callerID, callerID, counterpartID)
		if err != nil {
			h.writeHistoryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, HistoryResponse{Items: toItems(items)})
		return
	}

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}
	items, next, err := h.dialogSvc.HistoryPage(r.Context(), callerID, callerID, counterpartID, after, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		h.writeHistoryErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Items: toItems(items), NextCursor: next})
}

// POST /messages/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	callerID := httpmw.UserIDFromCtx(r.Context())
	if callerID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	messageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || messageID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	if err := h.dialogSvc.MarkRead(r.Context(), callerID, messageID); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		slog.Error("handler.MarkRead:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeHistoryErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not a participant"})
	case errors.Is(err, domain.ErrInvalidUser):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler.GetHistory:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

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

func toItems(ms []domain.Message) []MessageItem {
	out := make([]MessageItem, 0, len(ms))
	for i := range ms {
		out = append(out, toItem(&ms[i]))
	}
	return out
}
