package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/infrastructure/realtime"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/usecase"
)

// ChannelVerifier checks subscription grants; realtime.ChannelSigner implements it.
type ChannelVerifier interface {
	Verify(socketID, channel, channelData, token string) error
}

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
// Clients subscribe to channels with grants from the authorize endpoint, and
// may send messages and seen signals over the same socket.
type ChatSocketController struct {
	router          *realtime.Router
	verifier        ChannelVerifier
	sendMessageUC   *usecase.SendMessageUseCase
	markSeenUC      *usecase.MarkSeenUseCase
	inflightTimeout time.Duration
}

func NewChatSocketController(router *realtime.Router, verifier ChannelVerifier, send *usecase.SendMessageUseCase, seen *usecase.MarkSeenUseCase) *ChatSocketController {
	return &ChatSocketController{
		router:          router,
		verifier:        verifier,
		sendMessageUC:   send,
		markSeenUC:      seen,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type inboundFrame struct {
	Type           string  `json:"type"`
	Channel        string  `json:"channel,omitempty"`
	Auth           string  `json:"auth,omitempty"`
	ChannelData    string  `json:"channel_data,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Body           *string `json:"body,omitempty"`
	Image          *string `json:"image,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type     string `json:"type"`
	SocketID string `json:"socket_id,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

type sentFrame struct {
	Type    string        `json:"type"`
	Message *chat.Message `json:"message"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		email := ""
		if user.Email != nil {
			email = *user.Email
		}
		conn := realtime.NewConnection(user.ID, email, ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()
		logx.WithContext(c.Request.Context()).Infow("socket connected",
			logx.Field("socket_id", conn.ID), logx.Field("user_id", user.ID))

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected", SocketID: conn.ID})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "subscribe":
				ctl.handleSubscribe(conn, frame)
			case "unsubscribe":
				ctl.handleUnsubscribe(conn, frame)
			case "message":
				ctl.handleMessage(c, conn, user, frame)
			case "seen":
				ctl.handleSeen(c, conn, user, frame)
			case "ping":
				ctl.reply(conn, ackFrame{Type: "pong"})
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleSubscribe(conn *realtime.Connection, frame inboundFrame) {
	if frame.Channel == "" {
		ctl.replyError(conn, "bad_request", "channel is required")
		return
	}
	if err := ctl.verifier.Verify(conn.ID, frame.Channel, frame.ChannelData, frame.Auth); err != nil {
		ctl.replyError(conn, "forbidden", err.Error())
		return
	}
	if !ctl.router.Join(frame.Channel, conn) {
		ctl.replyError(conn, "gone", "session replaced")
		return
	}
	ctl.reply(conn, ackFrame{Type: "subscribed", Channel: frame.Channel})
}

func (ctl *ChatSocketController) handleUnsubscribe(conn *realtime.Connection, frame inboundFrame) {
	if frame.Channel == "" {
		ctl.replyError(conn, "bad_request", "channel is required")
		return
	}
	ctl.router.Leave(frame.Channel, conn)
	ctl.reply(conn, ackFrame{Type: "unsubscribed", Channel: frame.Channel})
}

func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, user chat.User, frame inboundFrame) {
	ctx, cancel := requestContext(c, ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.sendMessageUC.Execute(ctx, usecase.SendMessageInput{
		ConversationID: frame.ConversationID,
		Sender:         user,
		Body:           frame.Body,
		Image:          frame.Image,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	ctl.reply(conn, sentFrame{Type: "sent", Message: msg})
}

func (ctl *ChatSocketController) handleSeen(c *gin.Context, conn *realtime.Connection, user chat.User, frame inboundFrame) {
	ctx, cancel := requestContext(c, ctl.inflightTimeout)
	defer cancel()

	res, err := ctl.markSeenUC.Execute(ctx, usecase.MarkSeenInput{
		ConversationID: frame.ConversationID,
		Viewer:         user,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	ack := sentFrame{Type: "seen"}
	if res.Created {
		ack.Message = res.Message
	}
	ctl.reply(conn, ack)
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch statusOf(err) {
	case http.StatusInternalServerError:
		logx.Errorw("socket request failed", logx.Field("socket_id", conn.ID), logx.Field("error", err.Error()))
		ctl.replyError(conn, "internal_error", "internal error")
	case http.StatusForbidden:
		ctl.replyError(conn, "forbidden", err.Error())
	case http.StatusNotFound:
		ctl.replyError(conn, "not_found", err.Error())
	default:
		ctl.replyError(conn, "bad_request", err.Error())
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message})
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
