package interceptors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/demesne/go-demesne-server/global"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
)

const (
	LimitRequestsPerSecond = 5
	// login and token requests reach the PDS (and its email sender)
	LimitSensitiveRequestsPerMinute = 10
)

var sensitivePath = regexp.MustCompile(`^/api/v.*/(login|accounts/[^/]+/keys/request-token)$`)

func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if global.RateLimiter == nil {
			c.Next()
			return
		}
		ip, ipErr := GetIPFromContext(c)
		if ipErr != nil || ip == nil {
			unkn := "unknown"
			ip = &unkn
		}
		userAgent := c.GetHeader("User-Agent")
		acceptLanguage := c.GetHeader("Accept-Language")
		all := fmt.Sprintf("%s%s%s", *ip, userAgent, acceptLanguage)

		limit := redis_rate.PerSecond(LimitRequestsPerSecond)
		if sensitivePath.MatchString(c.Request.URL.Path) {
			limit = redis_rate.PerMinute(LimitSensitiveRequestsPerMinute)
			all = fmt.Sprintf("%s%s", all, "_sensitive")
		}

		hash := xxhash.Sum64String(all)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		result, err := global.RateLimiter.Allow(ctx, strconv.FormatUint(hash, 10), limit)
		if err != nil {
			level.Error(global.Logger).Log("msg", "rate limit check failed", "err", err)
			c.AbortWithError(http.StatusInternalServerError, errors.New("failed to perform rate limit check"))
			return
		}
		if result.Allowed <= 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": http.StatusTooManyRequests, "message": "too many requests"})
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit.Rate))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(result.ResetAfter.Milliseconds())))
		c.Next()
	}
}
