package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
)

var (
	errTooManyRequests = apierrors.New(apierrors.KindInternal, "Too many requests")
	errServerBusy      = apierrors.New(apierrors.KindInternal, "Server busy")
)

// RateLimit is a global token bucket
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errTooManyRequests)
	}
}

// ConcurrencyLimit caps requests in flight. Requests over the cap are
// rejected, not queued.
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errServerBusy)
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}

// MaxBodyBytes limits request body size
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// Timeout bounds the request context
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, apierrors.New(apierrors.KindInternal, "Request timed out"))
		}
	}
}
