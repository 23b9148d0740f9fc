package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"restbucks/internal/resilience"
	"restbucks/pkg"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var errRateLimited = pkg.NewDomainErrorSimple("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)

// RateLimit admits each request against the caller's fixed window before any
// handler runs. Clients are keyed by gin's ClientIP.
func RateLimit(limiter *resilience.RateLimiter, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		d := limiter.Admit(c.ClientIP())

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			wait := int(math.Ceil(d.ResetAt.Sub(now()).Seconds()))
			if wait < 1 {
				wait = 1
			}
			h.Set("Retry-After", strconv.Itoa(wait))
			zerolog.Ctx(c.Request.Context()).Info().Str("client_ip", c.ClientIP()).Msg("[http][ratelimit] request rejected")
			c.AbortWithStatusJSON(errRateLimited.HTTPStatus, errRateLimited.ToHTTPError())
			return
		}
		c.Next()
	}
}
