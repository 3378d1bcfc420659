package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/tracing"
)

const (
	// HeaderRequestID carries the request ID in and out.
	HeaderRequestID = "X-Request-ID"

	// HeaderActorID and HeaderActorAdmin are set by the upstream gateway
	// after it authenticates the caller.
	HeaderActorID    = "X-Actor-ID"
	HeaderActorAdmin = "X-Actor-Admin"

	actorKey     = "actor"
	requestIDKey = "request_id"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// RequestID reuses the inbound X-Request-ID or assigns a new one, and puts
// a request-scoped logger into the request context.
func RequestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)

		ctx := logger.WithContext(c.Request.Context(), log.WithRequestID(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRequestID returns the request ID assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Actor resolves the caller capability from the gateway headers. A request
// without X-Actor-ID is anonymous and can only read.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := shared.Actor{SubjectID: strings.TrimSpace(c.GetHeader(HeaderActorID))}
		if v := c.GetHeader(HeaderActorAdmin); v != "" {
			admin, err := strconv.ParseBool(v)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": gin.H{"code": "invalid_actor", "message": HeaderActorAdmin + " must be a boolean"},
				})
				return
			}
			actor.Admin = admin
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the caller set by Actor.
func GetActor(c *gin.Context) shared.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(shared.Actor); ok {
			return a
		}
	}
	return shared.Actor{}
}

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVABILITY
// ══════════════════════════════════════════════════════════════════════════════

// RequestLogger logs each request after it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("route", route(c)),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String(logger.RequestIDKey, GetRequestID(c)),
		}
		if a := GetActor(c); a.SubjectID != "" {
			fields = append(fields, logger.String("actor", a.SubjectID))
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

// Metrics counts requests by route and status.
func Metrics(m *metrics.Recorder) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		c.Next()
		m.HTTPRequest(c.Request.Method, route(c), strconv.Itoa(c.Writer.Status()))
	}
}

// Tracing wraps each request in a span named after its route.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartSpan(c.Request.Context(), "http "+c.Request.Method+" "+route(c))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Recovery turns a panic into a 500 and logs it.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			logger.String("route", route(c)),
			logger.String(logger.RequestIDKey, GetRequestID(c)),
			logger.String("panic", fmt.Sprint(recovered)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "internal server error"},
		})
	})
}

func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
