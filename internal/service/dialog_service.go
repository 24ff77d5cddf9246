package service

import (
	"context"
	"strings"

	"github.com/cwrk-planet/dm-service/internal/domain"
)

// MessageRepo — контракт хранилища сообщений (реализация в internal/postgres).
type MessageRepo interface {
	Save(ctx context.Context, senderID, receiverID int64, text string) (*domain.Message, error)
	History(ctx context.Context, userA, userB int64) ([]domain.Message, error)
	HistoryPage(ctx context.Context, userA, userB int64, after string, limit int) ([]domain.Message, string, error)
	MarkRead(ctx context.Context, messageID, readerID int64) error
}

type DialogService struct {
	repo MessageRepo

	maxTextLen int
}

func NewDialogService(repo MessageRepo) *DialogService {
	return &DialogService{
		repo:       repo,
		maxTextLen: 4000,
	}
}

func (s *DialogService) SetMaxTextLen(n int) {
	if n > 0 {
		s.maxTextLen = n
	}
}

// Send валидирует и сохраняет сообщение. Рассылки здесь нет:
// транспорт фанаутит только после успешного возврата (durable-first).
func (s *DialogService) Send(ctx context.Context, senderID, receiverID int64, text string) (*domain.Message, error) {
	if senderID <= 0 || receiverID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(text) > s.maxTextLen {
		return nil, domain.ErrMessageTooLong
	}

	return s.repo.Save(ctx, senderID, receiverID, text)
}

// History возвращает весь диалог (userA,userB) по возрастанию (created_at,id).
// callerID обязан быть участником пары, иначе ErrNotParticipant.
func (s *DialogService) History(ctx context.Context, callerID, userA, userB int64) ([]domain.Message, error) {
	if callerID <= 0 || userA <= 0 || userB <= 0 {
		return nil, domain.ErrInvalidUser
	}
	if callerID != userA && callerID != userB {
		return nil, domain.ErrNotParticipant
	}

	return s.repo.History(ctx, userA, userB)
}

// HistoryPage — то же самое, но страницей (для REST).
func (s *DialogService) HistoryPage(ctx context.Context, callerID, userA, userB int64, after string, limit int) ([]domain.Message, string, error) {
	if callerID <= 0 || userA <= 0 || userB <= 0 {
		return nil, "", domain.ErrInvalidUser
	}
	if callerID != userA && callerID != userB {
		return nil, "", domain.ErrNotParticipant
	}

	return s.repo.HistoryPage(ctx, userA, userB, after, limit)
}

// MarkRead помечает сообщение прочитанным от имени callerID.
// Репозиторий сам гарантирует, что caller — получатель.
func (s *DialogService) MarkRead(ctx context.Context, callerID, messageID int64) error {
	if callerID <= 0 || messageID <= 0 {
		return domain.ErrInvalidUser
	}

	return s.repo.MarkRead(ctx, messageID, callerID)
}
