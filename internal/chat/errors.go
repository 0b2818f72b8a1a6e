package chat

import (
	"errors"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
)

var (
	ErrNotFound        = docstore.ErrNotFound
	ErrUnauthenticated = errors.New("chat: no signed in user")
	ErrForbidden       = errors.New("chat: only the author can edit a message")
	ErrNotMember       = errors.New("chat: current user is not a room member")
	ErrRecordAbsent    = errors.New("chat: record deleted before it could be read")
	ErrInvalidMessage  = errors.New("chat: invalid message")
	ErrEmptyRoomName   = errors.New("chat: group room name is required")
	ErrEmptyUserID     = errors.New("chat: user id is required")
	ErrSelfDirectRoom  = errors.New("chat: cannot create direct room with yourself")
	ErrInvalidConfig   = errors.New("chat: invalid config")
)

// TransportError сбой хранилища. Для подписки он окончательный:
// повторы остаются на стороне клиента хранилища.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func errInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}
