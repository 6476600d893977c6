package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds client silence; clients ping well inside it.
	readWait = 5 * time.Minute
	// MaxMessageBytes caps one client frame, enough for a full offline flush.
	MaxMessageBytes = 4 << 20
)

// Prepare applies read limits to a freshly upgraded connection.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageBytes)
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, ref, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Ref:   ref,
		Code:  code,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
