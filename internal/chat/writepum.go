package chat

import (
	"time"

	"github.com/gorilla/websocket"
)

// WriteSocket отправляет кадры из буфера клиенту и поддерживает heartbeat (PING)
func (client *Client) WriteSocket() {
	ticker := time.NewTicker(client.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.Close()
	}()

	for {
		select {
		case payload := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(client.cfg.WriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				client.log.Debug().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(client.cfg.WriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.closeCh:
			return
		}
	}
}
