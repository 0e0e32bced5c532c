package server

import (
	"context"

	"github.com/coder/websocket"
)

// wsTransport adapts a coder/websocket connection to the hub's Transport.
// websocket.Conn supports concurrent writers, and Write honors the context
// deadline, which gives the hub its per-send timeout.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
