package entity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidData  = errors.New("invalid record data")
	ErrUnknownKind  = errors.New("unknown entity kind")
	ErrKindMismatch = errors.New("fields do not match store kind")
	ErrProtected    = errors.New("record is protected")
	ErrOwnerMissing = errors.New("owner is not specified")
)

// ProtectedRecordError возвращается, когда удаление запрещено бизнес-правилом.
type ProtectedRecordError struct {
	Kind   Kind
	ID     string
	Reason string
}

func (e *ProtectedRecordError) Error() string {
	return fmt.Sprintf("%s %s is protected: %s", e.Kind, e.ID, e.Reason)
}

func (e *ProtectedRecordError) Is(target error) bool {
	return target == ErrProtected
}

// RemoteCallError описывает неудачный вызов удаленного API.
// Transient означает, что повтор может пройти успешно.
type RemoteCallError struct {
	Message    string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote call failed (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote call failed: %s", e.Message)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// NewStatusError строит ошибку по HTTP статусу ответа.
func NewStatusError(status int, message string) *RemoteCallError {
	return &RemoteCallError{
		Message:    message,
		StatusCode: status,
		Transient:  IsTransientStatus(status),
	}
}

// IsTransientStatus - 5xx, 429 и 408 считаются временными.
func IsTransientStatus(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout
}

// IsTransient сообщает, имеет ли смысл повторять вызов.
// Неизвестные ошибки считаются постоянными.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRemoteNotFound сообщает, ответил ли сервер 404.
func IsRemoteNotFound(err error) bool {
	var rce *RemoteCallError
	return errors.As(err, &rce) && rce.StatusCode == http.StatusNotFound
}

// IsRemoteConflict сообщает, ответил ли сервер 409.
func IsRemoteConflict(err error) bool {
	var rce *RemoteCallError
	return errors.As(err, &rce) && rce.StatusCode == http.StatusConflict
}
