package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/session"
	"github.com/DoyleJ11/raffle-backend/internal/types"
	pub "github.com/DoyleJ11/raffle-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeTimeout   = 3 * time.Second
	commandTimeout = 5 * time.Second
	pingInterval   = 30 * time.Second
	outboxSize     = 32
)

// maxMessageBytes fits a SetBranding carrying every logo at full size.
var maxMessageBytes = int64(engine.MaxLogos*(base64.StdEncoding.EncodedLen(engine.MaxLogoBytes)+64) + 64<<10)

type Options struct {
	// OriginPatterns lists extra origins allowed to connect, e.g.
	// "localhost:*". Same-origin requests are always accepted.
	OriginPatterns []string
	Logger         *zap.Logger
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(r.URL.Query().Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		sess, err := h.Get(r.Context(), code)
		if err != nil {
			if errors.Is(err, hub.ErrSessionNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(maxMessageBytes)

		clientID := uuid.NewString()
		log := log.With(zap.String("session", code), zap.String("client", clientID))

		out := make(chan session.Snapshot, outboxSize)
		select {
		case sess.Inbox() <- session.Join{ClientID: clientID, Outbox: out}:
		case <-sess.Done():
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer func() {
			select {
			case sess.Inbox() <- session.Leave{ClientID: clientID}:
			case <-sess.Done():
			}
		}()
		log.Debug("client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()
			for {
				select {
				case snap, ok := <-out:
					if !ok {
						// dropped as slow, or the session ended
						conn.Close(websocket.StatusGoingAway, "session closed")
						return
					}
					if err := writeJSON(ctx, conn, message(code, snap)); err != nil {
						return
					}
				case <-ping.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeError(ctx, conn, types.CodeBadRequest, "bad json")
				continue
			}

			cmd, ok := cm.Command()
			if !ok {
				_ = writeError(ctx, conn, types.CodeUnsupported, "unknown type")
				continue
			}

			cctx, ccancel := context.WithTimeout(ctx, commandTimeout)
			err = sess.Do(cctx, cmd)
			ccancel()
			if err != nil {
				// rejections go to the sender only
				_ = writeError(ctx, conn, types.ErrorCode(err), err.Error())
			}
		}
	}
}

// message renders snap for the wire. Flicker frames only carry the name
// on screen; everything else is a full snapshot.
func message(code string, snap session.Snapshot) types.ServerMessage {
	if snap.DisplayOnly {
		return types.ServerMessage{Type: "Display", Version: snap.Version, Display: snap.Display}
	}
	view := pub.FromState(code, snap.Version, snap.State, snap.Display)
	return types.ServerMessage{Type: "StateSnapshot", State: &view}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, code, message string) error {
	return writeJSON(ctx, conn, types.ServerMessage{Type: "Error", Error: code, Message: message})
}
