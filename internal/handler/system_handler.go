package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const statusTimeout = 2 * time.Second

// SystemHandler reports the health of this instance.
type SystemHandler struct {
	rdb       *redis.Client
	proctor   *service.ProctorService
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(rdb *redis.Client, proctor *service.ProctorService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		proctor:   proctor,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Proctoring
	OpenSessions int   `json:"open_sessions"`
	QueueResults int64 `json:"queue_results"`
	RedisOK      bool  `json:"redis_ok"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Status godoc
// GET /api/v1/recruiter/system/status
func (h *SystemHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *SystemHandler) collect(ctx context.Context) systemStatus {
	s := systemStatus{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		OpenSessions: h.proctor.OpenSessions(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAlloc = ms.HeapAlloc
	s.HeapSys = ms.Sys
	s.NumGC = ms.NumGC

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	depth, err := h.rdb.LLen(ctx, config.WorkerKey.PersistResultsQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read result queue depth")
		return s
	}
	s.RedisOK = true
	s.QueueResults = depth
	return s
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
