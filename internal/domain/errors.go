package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable - временная ошибка источника, повторяется с задержкой.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedSource - некорректный дескриптор источника, повтор бессмысленен.
	ErrMalformedSource = errors.New("malformed source descriptor")
	// ErrMalformedPayload - элемент отклонен нормализатором, пакет продолжается.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrAllSourcesFailed - обновление не получило данных ни от одного источника.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrStorePersistenceFailed - хранилище недоступно; на ленту в памяти не влияет.
	ErrStorePersistenceFailed = errors.New("store persistence failed")
	// ErrRefreshCancelled - обновление отменено вызывающей стороной или по таймауту.
	ErrRefreshCancelled = errors.New("refresh cancelled")

	ErrSourceExists  = errors.New("source already registered")
	ErrUnknownSource = errors.New("unknown source")
)

// SourceError связывает ошибку загрузки с конкретным источником.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Terminal сообщает, что ошибка не подлежит повтору.
func Terminal(err error) bool {
	return errors.Is(err, ErrMalformedSource) || errors.Is(err, ErrMalformedPayload)
}
