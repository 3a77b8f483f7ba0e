package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime status.
type SystemHandler struct {
	pool           *pgxpool.Pool
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	startTime      time.Time
	log            zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, sessionService *service.ExamSessionService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:           pool,
		rdb:            rdb,
		sessionService: sessionService,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings Postgres and Redis. Answers 503 when either is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK
	if err := h.pool.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		h.log.Warn().Interface("checks", checks).Msg("Health check degraded")
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}

type systemStatus struct {
	Timestamp    int64  `json:"timestamp"`
	Uptime       string `json:"uptime"`
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	HeapSys      uint64 `json:"heap_sys"`
	NumGC        uint32 `json:"num_gc"`
	DBConns      int32  `json:"db_conns"`
	DBIdleConns  int32  `json:"db_idle_conns"`
	LiveSessions int    `json:"live_sessions"`

	QueueAnswers   int64 `json:"queue_answers"`
	QueueIntegrity int64 `json:"queue_integrity"`
}

// GetStatus godoc
// GET /api/v1/admin/system/status
// Returns runtime, pool and worker queue figures.
func (h *SystemHandler) GetStatus(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *SystemHandler) collect(ctx context.Context) systemStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stat := h.pool.Stat()
	s := systemStatus{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    ms.HeapAlloc,
		HeapSys:      ms.Sys,
		NumGC:        ms.NumGC,
		DBConns:      stat.TotalConns(),
		DBIdleConns:  stat.IdleConns(),
		LiveSessions: h.sessionService.LiveCount(),
	}

	pipe := h.rdb.Pipeline()
	answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	integrityCmd := pipe.LLen(ctx, config.WorkerKey.PersistIntegrityQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		s.QueueAnswers, _ = answersCmd.Result()
		s.QueueIntegrity, _ = integrityCmd.Result()
	}
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
