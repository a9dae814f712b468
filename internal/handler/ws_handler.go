package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/proctor/integrity"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

const sendBufferSize = 32

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the candidate's proctored session stream.
type WSHandler struct {
	proctor  *service.ProctorService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctor *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:  proctor,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/offers/:offer_id/stream
// Opens the candidate's session and drives it from client actions.
// Closing the socket before completion cancels the session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	offerID, err := uuid.Parse(c.Param("offer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().
		Int("candidate_id", claims.UserID).
		Str("offer_id", offerID.String()).
		Logger()

	// The request context is not reliable once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newWSClient(conn, wsLog)

	sess, err := h.proctor.Open(ctx, offerID, claims.UserID, client)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Session refused")
		_, code := classifyError(err)
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}

	go client.writePump()
	defer client.close()
	defer func() {
		if err := sess.Close(); err != nil {
			wsLog.Error().Err(err).Msg("Session close failed")
		}
	}()

	wsLog.Info().Str("session_id", sess.ID().String()).Msg("Candidate connected")

	client.enqueue(ws.PaperResponse{
		Event:           ws.EventPaper,
		Questions:       sess.Questions(),
		DurationSeconds: sess.DurationSeconds(),
	})
	client.sendState(sess)

	for {
		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		h.dispatch(ctx, client, sess, &req)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *wsClient, sess *service.Session, req *ws.Request) {
	switch req.Action {
	case ws.ActionStart:
		// Start suspends until the media prompt is answered; keep reading meanwhile.
		consent := req.Consent
		go func() {
			if err := sess.Start(ctx, consent); err != nil {
				client.sendError(err)
				return
			}
			client.sendState(sess)
		}()

	case ws.ActionMedia:
		if !sess.ReportMedia(media.Grant{Camera: req.Camera, Microphone: req.Microphone}) {
			client.log.Debug().Msg("Media report dropped: one is already pending")
		}

	case ws.ActionAnswer:
		qid, err := uuid.Parse(req.QuestionID)
		if err != nil || req.OptionIndex == nil {
			client.sendCode(response.ErrInvalidPayload)
			return
		}
		client.reply(sess, sess.SelectAnswer(qid, *req.OptionIndex))

	case ws.ActionNext:
		client.reply(sess, sess.GoToNext())

	case ws.ActionPrevious:
		client.reply(sess, sess.GoToPrevious())

	case ws.ActionSubmit:
		// The completed event is pushed by the session itself.
		if _, err := sess.Submit(ctx); err != nil {
			if errors.Is(err, proctor.ErrNotInProgress) {
				client.sendError(err)
				return
			}
			client.log.Error().Err(err).Msg("Result emitted but not saved")
		}

	case ws.ActionSignal:
		sess.Signal(integrity.Signal{
			Type:  integrity.SignalType(req.Type),
			Key:   req.Key,
			Ctrl:  req.Ctrl,
			Shift: req.Shift,
		})

	case ws.ActionState:
		client.sendState(sess)

	case ws.ActionPing:
		client.enqueue(ws.EventResponse{Event: ws.EventPong})

	default:
		client.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		client.sendCode(response.ErrUnknownAction)
	}
}

// wsClient serializes writes to one connection and implements
// service.SessionNotifier. Sends never block the session.
type wsClient struct {
	conn *websocket.Conn
	log  zerolog.Logger

	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, log zerolog.Logger) *wsClient {
	return &wsClient{
		conn: conn,
		log:  log,
		send: make(chan interface{}, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			if err := ws.WriteTyped(c.conn, v); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(c.conn); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsClient) enqueue(v interface{}) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- v:
	default:
		c.log.Warn().Msg("Send buffer full, event dropped")
	}
}

func (c *wsClient) sendState(sess *service.Session) {
	c.enqueue(ws.StateResponse{Event: ws.EventState, State: sess.Snapshot()})
}

func (c *wsClient) sendCode(code response.ErrCode) {
	c.enqueue(ws.NewError(string(code), response.GetMessage(code)))
}

func (c *wsClient) sendError(err error) {
	_, code := classifyError(err)
	if code == response.ErrInternal && !errors.Is(err, context.Canceled) {
		c.log.Error().Err(err).Msg("Session action failed")
	}
	c.sendCode(code)
}

// reply answers a navigation or answer action with the new state or the error.
func (c *wsClient) reply(sess *service.Session, err error) {
	if err != nil {
		c.sendError(err)
		return
	}
	c.sendState(sess)
}

func (c *wsClient) MediaRequested() {
	c.enqueue(ws.EventResponse{Event: ws.EventMediaRequest})
}

func (c *wsClient) MediaReleased() {
	c.enqueue(ws.EventResponse{Event: ws.EventMediaRelease})
}

func (c *wsClient) AnomalyWarning(ev model.AnomalyEvent, total int) {
	c.enqueue(ws.WarningResponse{
		Event:        ws.EventWarning,
		Kind:         ev.Kind,
		Message:      ev.Kind.Warning(),
		AnomalyCount: total,
		Timestamp:    ev.Timestamp,
	})
}

func (c *wsClient) Completed(result model.Result) {
	c.enqueue(ws.CompletedResponse{Event: ws.EventCompleted, Result: result})
}
