package worker

import "github.com/attestate/extraction-worker/internal/domain"

// Contain превращает ошибку в данные: возвращает копию msg с полем error.
//
// Исходное сообщение сохраняется целиком (включая нераспознанные поля),
// results снимается. Для пустого msg создаётся новое сообщение.
// Contain не паникует и не пишет в исходный msg.
func Contain(err error, msg *domain.Message) *domain.Message {
	if err == nil {
		err = ErrUnknown
	}

	out := msg.Clone()
	if out == nil {
		out = &domain.Message{}
	}
	out.SetError(err.Error())
	return out
}
