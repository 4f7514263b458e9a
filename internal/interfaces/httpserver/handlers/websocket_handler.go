package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/logger"
	"workify/services/conversation-api/internal/infrastructure/realtime"
	"workify/services/conversation-api/internal/interfaces/httpserver/requests"
	"workify/services/conversation-api/internal/interfaces/httpserver/responses"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// Inbound actions.
const (
	actionSend = "send"
	actionSeen = "seen"
	actionPing = "ping"
)

// Outbound frame types. Domain events use their own event type.
const (
	frameAck   = "ack"
	frameError = "error"
	framePong  = "pong"
)

// Authenticator validates the credential of an upgrade request.
type Authenticator interface {
	AuthenticateRequest(c *gin.Context) (*auth.Claims, error)
}

// WebsocketOptions tunes the realtime endpoint.
type WebsocketOptions struct {
	AllowedOrigins []string
	ReadLimit      int64
	Connection     realtime.ConnectionOptions
}

type replyFrame struct {
	Type  string                `json:"type"`
	Ref   string                `json:"ref,omitempty"`
	Data  any                   `json:"data,omitempty"`
	Error *responses.ErrorFrame `json:"error,omitempty"`
}

// WebsocketHandler upgrades authenticated callers to a realtime session.
type WebsocketHandler struct {
	auth     Authenticator
	manager  conversation.Manager
	engine   conversation.Engine
	registry *realtime.Registry
	upgrader websocket.Upgrader
	opts     WebsocketOptions
	log      zerolog.Logger
}

// NewWebsocketHandler constructs the handler. An empty origin list accepts every origin.
func NewWebsocketHandler(
	authenticator Authenticator,
	manager conversation.Manager,
	engine conversation.Engine,
	registry *realtime.Registry,
	opts WebsocketOptions,
	log zerolog.Logger,
) *WebsocketHandler {
	allowed := lo.SliceToMap(opts.AllowedOrigins, func(origin string) (string, struct{}) {
		return strings.TrimRight(strings.TrimSpace(origin), "/"), struct{}{}
	})
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	return &WebsocketHandler{
		auth:     authenticator,
		manager:  manager,
		engine:   engine,
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		log: log.With().Str("handler", "websocket").Logger(),
	}
}

// Serve handles GET /v1/ws
// @Summary Open the realtime channel
// @Description Upgrades to a websocket. The credential comes from the Authorization header or the access_token query parameter. The socket is closed with code 4001 when the token expires.
// @Tags Realtime
// @Param access_token query string false "Bearer token"
// @Success 101
// @Failure 401 {object} platformerrors.HTTPErrorResponse
// @Router /v1/ws [get]
func (h *WebsocketHandler) Serve(c *gin.Context) {
	claims, err := h.auth.AuthenticateRequest(c)
	if err != nil {
		message := "invalid token"
		if errors.Is(err, auth.ErrMissingToken) {
			message = "missing bearer token"
		}
		platformerrors.WriteUnauthorized(c, message)
		return
	}

	caller, err := h.manager.ResolveCaller(c.Request.Context(), claims.Principal)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(caller.Destination(), ws, h.opts.Connection)
	h.registry.Register(conn)
	conn.Start()
	defer func() {
		h.registry.Unregister(conn)
		conn.Close(websocket.CloseNormalClosure, "")
	}()

	if !claims.ExpiresAt.IsZero() {
		expiry := time.AfterFunc(time.Until(claims.ExpiresAt), func() {
			conn.Close(realtime.CloseTokenExpired, "token expired")
		})
		defer expiry.Stop()
	}

	log := h.log.With().
		Str("connection_id", conn.ID()).
		Str("caller", logger.MaskEmail(caller.Email)).
		Str("caller_type", string(caller.Type)).
		Logger()
	log.Debug().Msg("websocket session opened")

	h.readLoop(c.Request.Context(), ws, conn, caller, log)
	log.Debug().Msg("websocket session closed")
}

func (h *WebsocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *realtime.Connection, caller conversation.Identity, log zerolog.Logger) {
	pongWait := 2 * h.pingInterval()
	ws.SetReadLimit(h.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		reply := h.handleFrame(ctx, data, caller)
		payload, err := json.Marshal(reply)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode reply frame")
			continue
		}
		if err := conn.Send(payload); err != nil {
			return
		}
	}
}

func (h *WebsocketHandler) pingInterval() time.Duration {
	if h.opts.Connection.PingInterval > 0 {
		return h.opts.Connection.PingInterval
	}
	return 30 * time.Second
}

func (h *WebsocketHandler) handleFrame(ctx context.Context, data []byte, caller conversation.Identity) replyFrame {
	var frame requests.SocketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return errorReply("", platformerrors.NewError(ctx, platformerrors.LayerHandler,
			platformerrors.ErrorTypeValidation, "malformed frame", err, ""))
	}

	switch frame.Action {
	case actionPing:
		return replyFrame{Type: framePong, Ref: frame.Ref}
	case actionSend:
		res, err := sendMessage(ctx, h.engine, conversation.SendParams{
			ConversationID:  frame.ConversationID,
			Caller:          caller,
			Content:         frame.Content,
			ClientMessageID: frame.ClientMessageID,
		}, "websocket")
		if err != nil {
			return errorReply(frame.Ref, err)
		}
		return replyFrame{Type: frameAck, Ref: frame.Ref, Data: responses.MapSendResult(res)}
	case actionSeen:
		res, err := markSeen(ctx, h.engine, frame.ConversationID, caller)
		if err != nil {
			return errorReply(frame.Ref, err)
		}
		return replyFrame{Type: frameAck, Ref: frame.Ref, Data: responses.MapSeenResult(res)}
	default:
		return errorReply(frame.Ref, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerHandler,
			platformerrors.ErrorTypeValidation, "unknown action", nil, "", map[string]any{"action": frame.Action}))
	}
}

func errorReply(ref string, err error) replyFrame {
	return replyFrame{Type: frameError, Ref: ref, Error: responses.NewErrorFrame(err)}
}
