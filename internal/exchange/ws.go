package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 15 * time.Second
	wsWriteWait        = 10 * time.Second
)

// wsConn adapts a gorilla websocket connection to the supervised stream
// interface. Cancellation is handled by the supervisor closing the
// connection, which unblocks the pending read.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Next(ctx context.Context) ([]byte, error) {
	_, msg, err := w.conn.ReadMessage()
	return msg, err
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// WriteJSON sends a control or subscription frame on the live connection.
func (w *wsConn) WriteJSON(v any) error {
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(v)
}

// dialWS opens one websocket connection and, when subscribe is non-nil,
// sends it as the first frame. Each call is one connection attempt.
func dialWS(ctx context.Context, url string, subscribe any) (*wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	ws := &wsConn{conn: conn}
	if subscribe != nil {
		if err := ws.WriteJSON(subscribe); err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	return ws, nil
}
