package api

import (
	"net/http"
	"time"

	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// HTTP 서버 타임아웃 설정
	defaultReadTimeout       = 30 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 90 * time.Second

	// defaultRequestTimeout 각 HTTP 요청의 최대 처리 시간입니다.
	defaultRequestTimeout = 60 * time.Second

	// defaultMaxBodySize 요청 본문 크기 제한입니다.
	defaultMaxBodySize = "1M"

	// IP별 Rate Limiting 기본값
	defaultRateLimitPerSecond = 20
	defaultRateLimitBurst     = 40
)

// HTTPServerConfig HTTP 서버 생성에 필요한 설정을 정의합니다.
type HTTPServerConfig struct {
	// Debug Echo 프레임워크의 디버그 모드 활성화 여부
	Debug bool

	// AllowOrigins CORS에서 허용할 Origin 목록
	AllowOrigins []string
}

// NewHTTPServer 설정된 미들웨어를 포함한 Echo 인스턴스를 생성합니다.
//
// 미들웨어 적용 순서:
//  1. PanicRecovery - 핸들러 패닉 복구 및 로깅 (가장 바깥)
//  2. RequestID    - 요청 추적용 고유 ID 부여
//  3. Server 헤더 제거 - 기술 스택 노출 방지
//  4. HTTPLogger   - 요청/응답 구조화 로깅 (429/503 거부도 기록)
//  5. RateLimiting - IP별 요청 제한
//  6. BodyLimit / Timeout - 리소스 보호
//  7. CORS / Secure - 교차 출처 정책 및 보안 헤더
//
// 라우트 설정은 포함되지 않으며, 반환된 Echo 인스턴스에 별도로 설정해야 합니다.
func NewHTTPServer(cfg HTTPServerConfig) *echo.Echo {
	e := echo.New()

	e.Debug = cfg.Debug
	e.HideBanner = true

	e.Server.ReadTimeout = defaultReadTimeout
	e.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	e.Server.WriteTimeout = defaultWriteTimeout
	e.Server.IdleTimeout = defaultIdleTimeout

	// Echo 프레임워크의 내부 로그를 애플리케이션 로거로 통합합니다.
	e.Logger = Logger{Logger: applog.StandardLogger()}

	e.HTTPErrorHandler = errorHandler

	e.Use(panicRecovery())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderServer, "")
			return next(c)
		}
	})
	e.Use(httpLogger())
	e.Use(rateLimiting(defaultRateLimitPerSecond, defaultRateLimitBurst))
	e.Use(middleware.BodyLimit(defaultMaxBodySize))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: defaultRequestTimeout,
	}))

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(middleware.Secure())

	return e
}
