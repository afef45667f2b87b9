package broadcast

import (
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// Handler streams broadcaster events to one client per request as server-sent
// events. Each event's type is the channel name and its data the JSON payload.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			b.logger.Error("failed to upgrade update stream", "error", err)
			http.Error(w, fmt.Sprintf("upgrading stream: %v", err), http.StatusInternalServerError)
			return
		}

		events, cancel := b.Subscribe()
		defer cancel()

		// Flush headers so clients see the stream open before the first event.
		if err := sess.Flush(); err != nil {
			b.logger.Warn("failed to flush update stream", "error", err)
			return
		}
		b.logger.Debug("update subscriber connected", "remote", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				b.logger.Debug("update subscriber disconnected", "remote", r.RemoteAddr)
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg := &sse.Message{Type: sse.Type(ev.Channel)}
				msg.AppendData(string(ev.Data))
				if err := sess.Send(msg); err != nil {
					b.logger.Warn("failed to send update", "channel", ev.Channel, "error", err)
					return
				}
				if err := sess.Flush(); err != nil {
					b.logger.Warn("failed to flush update", "channel", ev.Channel, "error", err)
					return
				}
			}
		}
	})
}
