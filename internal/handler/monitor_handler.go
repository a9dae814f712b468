package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const keepAliveInterval = 30 * time.Second

var pingPayload = []byte(`{"type":"ping"}`)

// MonitorHandler relays an offer's live proctoring events to recruiters.
type MonitorHandler struct {
	rdb     *redis.Client
	proctor *service.ProctorService
	log     zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, proctor *service.ProctorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:     rdb,
		proctor: proctor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorOfferSSE godoc
// GET /api/v1/recruiter/offers/:offer_id/monitor
func (h *MonitorHandler) MonitorOfferSSE(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("offer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.OfferMonitorChannel(offerID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sessions := h.proctor.ActiveSessions(offerID)
	if sessions == nil {
		sessions = []proctor.Snapshot{}
	}
	c.SSEvent("message", gin.H{
		"type":     "snapshot",
		"offer_id": offerID,
		"sessions": sessions,
	})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("offer_id", offerID.String()).Msg("Recruiter attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("offer_id", offerID.String()).Msg("Recruiter detached from live monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, no deserialization needed
			writeSSEData(c, []byte(msg.Payload))

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func writeSSEData(c *gin.Context, payload []byte) {
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(payload)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
