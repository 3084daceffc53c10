package mq

import "errors"

// Ошибки mq.
var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения или идёт reconnect).
	ErrNoChannel = errors.New("no channel available")

	// ErrClosed — Connection закрыт через Close.
	ErrClosed = errors.New("connection closed")
)
