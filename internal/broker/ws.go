package broker

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"botfleet/pkg/logger"
)

// StreamTickers keeps one websocket subscription for the given symbols
// and feeds last prices into the session cache. Reconnects forever
// until ctx is cancelled.
func (c *OKX) StreamTickers(ctx context.Context, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	args := make([]map[string]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  s,
		})
	}

	wsURL := c.wsHost + "/ws/v5/public"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Info("[WS] connect tickers, %d symbols", len(symbols))
		conn, _, err := c.wsDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			logger.Warn("[WS] dial error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		sub := map[string]any{"op": "subscribe", "args": args}
		if err := conn.WriteJSON(sub); err != nil {
			logger.Warn("[WS] subscribe error: %v", err)
			_ = conn.Close()
			continue
		}

		// Keepalive ping every 20s, otherwise OKX drops the socket.
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopPing:
					return
				case <-t.C:
					_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Warn("[WS] read error: %v", err)
				break
			}
			if string(msg) == "pong" {
				continue
			}

			var frame struct {
				Arg struct {
					Channel string `json:"channel"`
					InstID  string `json:"instId"`
				} `json:"arg"`
				Data []struct {
					Last string `json:"last"`
				} `json:"data"`
			}
			if err := sonic.Unmarshal(msg, &frame); err != nil {
				continue
			}
			if frame.Arg.Channel != "tickers" || len(frame.Data) == 0 {
				continue
			}
			px, err := strconv.ParseFloat(frame.Data[0].Last, 64)
			if err != nil || px <= 0 {
				continue
			}
			c.SetPrice(frame.Arg.InstID, px)
		}

		close(stopPing)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
			time.Sleep(time.Second)
		}
	}
}
