package domain

import "fmt"

// ConversationKey — симметричный ключ диалога: (a,b) и (b,a) дают одно и то же.
// Не хранится в БД, используется только для группировки/маршрутизации.
func ConversationKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}

	return fmt.Sprintf("%d:%d", a, b)
}
