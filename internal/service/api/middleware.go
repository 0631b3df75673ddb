package api

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// componentMiddleware API 미들웨어의 로깅용 컴포넌트 이름
const componentMiddleware = "api.middleware"

// stackBufferSize 패닉 발생 시 스택 트레이스를 저장할 버퍼 크기 (4KB)
const stackBufferSize = 4 << 10

// panicRecovery 핸들러에서 발생한 패닉을 복구하여 서버 다운을 방지하고,
// 스택 트레이스와 함께 에러를 기록하는 미들웨어를 반환합니다.
func panicRecovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = apperrors.New(apperrors.Internal, fmt.Sprintf("%v", r))
					}

					stack := make([]byte, stackBufferSize)
					length := runtime.Stack(stack, false)

					fields := applog.Fields{
						"error": err,
						"stack": string(stack[:length]),
					}
					if requestID := c.Response().Header().Get(echo.HeaderXRequestID); requestID != "" {
						fields["request_id"] = requestID
					}

					applog.WithComponentAndFields(componentMiddleware, fields).Error("PANIC RECOVERED")

					c.Error(err)
				}
			}()
			return next(c)
		}
	}
}

// httpLogger HTTP 요청/응답을 구조화된 로그로 기록하는 미들웨어를 반환합니다.
func httpLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			// 패닉 발생 시에도 로그가 기록되도록 defer로 보장합니다.
			defer func() {
				latency := time.Since(start)

				path := req.URL.Path
				if path == "" {
					path = "/"
				}

				applog.WithComponentAndFields(componentMiddleware, applog.Fields{
					"remote_ip":     c.RealIP(),
					"method":        req.Method,
					"path":          path,
					"status":        res.Status,
					"bytes_out":     res.Size,
					"latency":       latency.String(),
					"latency_human": latency.Round(time.Millisecond).String(),
					"user_agent":    req.UserAgent(),
					"request_id":    res.Header().Get(echo.HeaderXRequestID),
				}).Info("HTTP 요청 처리")
			}()

			return next(c)
		}
	}
}

// ipRateLimiter IP 주소별로 독립적인 rate.Limiter를 관리합니다.
//
// IP 주소는 한 번 추가되면 서버 재시작 전까지 메모리에 유지됩니다.
// 운영 API는 내부 조회 용도로 노출 범위가 좁아 현재 규모에서는 충분합니다.
type ipRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(requestsPerSecond, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter IP 주소에 대한 Limiter를 반환합니다. 없으면 새로 생성합니다.
func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limiters[ip]
	i.mu.RUnlock()
	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// 다른 고루틴이 이미 생성했을 수 있습니다.
	if limiter, exists = i.limiters[ip]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(i.rate, i.burst)
	i.limiters[ip] = limiter
	return limiter
}

// rateLimiting IP 기반 Rate Limiting 미들웨어를 반환합니다.
// 제한 초과 시 429 Too Many Requests와 Retry-After 헤더를 반환합니다.
func rateLimiting(requestsPerSecond, burst int) echo.MiddlewareFunc {
	limiter := newIPRateLimiter(requestsPerSecond, burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if !limiter.getLimiter(ip).Allow() {
				applog.WithComponentAndFields(componentMiddleware, applog.Fields{
					"remote_ip": ip,
					"path":      c.Request().URL.Path,
					"method":    c.Request().Method,
				}).Warn("Rate limit 초과")

				c.Response().Header().Set("Retry-After", "1")

				return newHTTPError(http.StatusTooManyRequests, "요청 한도를 초과하였습니다. 잠시 후 다시 시도해주세요.")
			}

			return next(c)
		}
	}
}
