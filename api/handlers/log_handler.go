package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/pkg/logger"
)

const (
	maxLogEntries = 1000
	pingInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// the API has no browser front end to protect
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LogHandler serves the categorized event logs
type LogHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(logsDir string, log *zap.Logger) *LogHandler {
	return &LogHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// GetLogs handles GET /api/v1/logs/:category
func (h *LogHandler) GetLogs(c *gin.Context) {
	category, err := logger.ParseCategory(c.Param("category"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		limit = 100
	}
	if limit > maxLogEntries {
		limit = maxLogEntries
	}

	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		date, err = time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, errors.New("invalid date format, use YYYY-MM-DD"))
			return
		}
	}

	entries, err := h.logReader.ReadLogs(category, date, c.Query("q"), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"date":     date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// StreamLogs handles GET /api/v1/logs/:category/stream. The connection is
// upgraded to a websocket that receives one JSON entry per message.
func (h *LogHandler) StreamLogs(c *gin.Context) {
	category, err := logger.ParseCategory(c.Param("category"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	backlog, err := strconv.Atoi(c.DefaultQuery("backlog", "50"))
	if err != nil || backlog < 0 {
		backlog = 50
	}
	if backlog > maxLogEntries {
		backlog = maxLogEntries
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade log stream", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// clients only send control frames; a failed read means they left
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	entries := make(chan logger.LogEntry, 64)
	go func() {
		defer close(entries)
		if err := h.logReader.Follow(ctx, category, backlog, entries); err != nil {
			h.logger.Warn("Log stream stopped", zap.String("category", string(category)), zap.Error(err))
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
