package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mealforge/mealforge-api/internal/models"
	"github.com/mealforge/mealforge-api/internal/repository"
)

// RequestLogWriter batches request log rows and flushes them to Postgres in
// the background, so persistence never sits on the request path.
type RequestLogWriter struct {
	repo    *repository.RequestLogRepository
	log     zerolog.Logger
	entries chan models.RequestLog
	done    chan struct{}
}

func NewRequestLogWriter(repo *repository.RequestLogRepository, log zerolog.Logger, bufferSize int) *RequestLogWriter {
	w := &RequestLogWriter{
		repo:    repo,
		log:     log.With().Str("component", "request_log").Logger(),
		entries: make(chan models.RequestLog, bufferSize),
		done:    make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *RequestLogWriter) run() {
	const batchSize = 100

	batch := make([]models.RequestLog, 0, batchSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.repo.CreateBatch(context.Background(), batch); err != nil {
			w.log.Warn().Err(err).Int("batch", len(batch)).Msg("request log insert failed")
		}
		batch = make([]models.RequestLog, 0, batchSize)
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				close(w.done)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes anything buffered and stops the worker.
func (w *RequestLogWriter) Close() {
	close(w.entries)
	<-w.done
}

// Middleware records every request to the async writer. Entries are dropped
// rather than blocking when the buffer is full.
func (w *RequestLogWriter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		var apiKeyID *uuid.UUID
		if v, exists := c.Get("api_key_id"); exists {
			if id, ok := v.(uuid.UUID); ok {
				apiKeyID = &id
			}
		}

		entry := models.RequestLog{
			Timestamp:      start,
			APIKeyID:       apiKeyID,
			Identity:       IdentityFrom(c),
			Tier:           TierFrom(c).String(),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		select {
		case w.entries <- entry:
		default:
			w.log.Debug().Msg("request log buffer full, entry dropped")
		}
	}
}
