package chat

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyMember      = errors.New("connection is already a member of the room")
	ErrRoomClosed         = errors.New("room has been closed")
	ErrRoomNotFound       = errors.New("room not found")
	ErrSessionClosed      = errors.New("session is closed")
	ErrTransportClosed    = errors.New("transport is closed")
	ErrSendBufferFull     = errors.New("send buffer is full")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")
)

// ProtocolError — кадр не разобран или имеет неизвестный тип.
// Соединение при этом остаётся открытым.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
