package middleware

import (
	"fmt"
	"net/http"
	"time"

	resp "github.com/miragespace/subpay/response"

	"github.com/go-redis/redis/v7"
	"go.uber.org/zap"
)

// RateLimitOptions contains the configuration for the rate limiter
type RateLimitOptions struct {
	Redis  redis.UniversalClient
	Logger *zap.Logger
	// Limit is the number of requests allowed per Window. Defaults to 60
	// per minute.
	Limit  int
	Window time.Duration
	// KeyFunc extracts the counter key from a request. Defaults to the
	// remote address.
	KeyFunc func(r *http.Request) string
}

// RateLimit returns a http middleware enforcing a fixed-window limit backed
// by redis. Counting happens with INCR plus a TTL set on the first hit of
// the window; if redis is down requests pass through.
func RateLimit(option RateLimitOptions) func(next http.Handler) http.Handler {
	if option.Limit <= 0 {
		option.Limit = 60
	}
	if option.Window <= 0 {
		option.Window = time.Minute
	}
	if option.KeyFunc == nil {
		option.KeyFunc = func(r *http.Request) string {
			return r.RemoteAddr
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("ratelimit:%s", option.KeyFunc(r))

			count, err := option.Redis.Incr(key).Result()
			if err != nil {
				option.Logger.Error("Unable to increment rate limit counter",
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := option.Redis.Expire(key, option.Window).Err(); err != nil {
					option.Logger.Error("Unable to set rate limit window",
						zap.Error(err),
					)
				}
			}
			if count > int64(option.Limit) {
				resp.WriteError(w, r, resp.ErrTooManyRequests())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
