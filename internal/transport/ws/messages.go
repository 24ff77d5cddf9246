package ws

import "time"

// Типы событий, которые ходят по WS
const (
	TypeRegisterInterest   = "register_interest"   // клиент хочет получать пуши для user_id
	TypeUnregisterInterest = "unregister_interest" // клиент отписывается от user_id
	TypeSend               = "send"                // отправка сообщения
	TypeDelivered          = "delivered"           // пуш сохранённого сообщения
	TypeSendAck            = "send_ack"            // подтверждение отправителю (НЕ сообщение)
	TypeError              = "error"               // ошибка обработки операции
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type InterestPayload struct {
	UserID string `json:"user_id"`
}

type SendPayload struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

// created_at — полная точность (RFC3339), как в REST-истории: клиент
// мержит оба источника и сортирует по (created_at, id), усечение ломает порядок.
type MessageItem struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type DeliveredPayload struct {
	Message MessageItem `json:"message"`
}

// для client: снятие pending и дедупликация
type SendAckPayload struct {
	MessageID string `json:"message_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeInvalidMessage = "invalid_message"
	CodeDeliveryFailed = "delivery_failed"
	CodeForbidden      = "forbidden"
	CodeBadPayload     = "bad_payload"
)
