// Package api 추적 상품 조회를 위한 운영용 HTTP API 서버를 제공합니다.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/config"
	"github.com/darkkaiser/pricewatch-server/internal/tracker"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	"github.com/labstack/echo/v4"
)

// component API 서비스의 로깅용 컴포넌트 이름
const component = "api.service"

// shutdownTimeout Graceful Shutdown 시 최대 대기 시간
const shutdownTimeout = 5 * time.Second

// Service 운영 API 서버의 생명주기를 관리하는 서비스입니다.
//
// Echo 기반 HTTP 서버를 고루틴으로 실행하며, 컨텍스트 취소 시
// Graceful Shutdown을 수행합니다.
type Service struct {
	appConfig *config.AppConfig

	trackerService *tracker.Service

	running   bool
	runningMu sync.Mutex
}

// NewService API 서비스를 생성합니다.
func NewService(appConfig *config.AppConfig, trackerService *tracker.Service) *Service {
	return &Service{
		appConfig: appConfig,

		trackerService: trackerService,
	}
}

// Start API 서비스를 시작합니다.
//
// 서버는 별도의 고루틴에서 실행되며, serviceStopCtx가 취소되면
// Graceful Shutdown을 수행한 후 serviceStopWG에 완료를 알립니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("서비스 시작 진입: API 서비스 초기화 프로세스를 시작합니다")

	if !s.appConfig.WatchAPI.Enabled {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Info("운영 API가 비활성화되어 있어 서버를 시작하지 않습니다")
		return nil
	}

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("API 서비스가 이미 실행 중입니다 (중복 호출)")
		return nil
	}

	s.running = true

	go s.runServiceLoop(serviceStopCtx, serviceStopWG)

	applog.WithComponent(component).Info("서비스 시작 완료: API 서비스가 정상적으로 초기화되었습니다")

	return nil
}

// runServiceLoop 서버 설정, HTTP 서버 시작, Shutdown 대기를 순차적으로 수행합니다.
func (s *Service) runServiceLoop(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	e := s.setupServer()

	httpServerDone := make(chan struct{})
	go s.startHTTPServer(e, httpServerDone)

	s.waitForShutdown(serviceStopCtx, e, httpServerDone)
}

// setupServer Echo 서버 인스턴스를 생성하고 라우트를 등록합니다.
func (s *Service) setupServer() *echo.Echo {
	e := NewHTTPServer(HTTPServerConfig{
		Debug:        s.appConfig.Debug,
		AllowOrigins: s.appConfig.WatchAPI.CORS.AllowOrigins,
	})

	SetupRoutes(e, NewHandler(s.trackerService))

	return e
}

// startHTTPServer HTTP 서버를 시작합니다. 서버가 종료되면 done 채널을 닫습니다.
//
// Note: 이 함수는 블로킹되며, 서버가 종료될 때까지 반환되지 않습니다.
func (s *Service) startHTTPServer(e *echo.Echo, done chan struct{}) {
	defer close(done)

	port := s.appConfig.WatchAPI.ListenPort
	applog.WithComponentAndFields(component, applog.Fields{
		"port": port,
	}).Debug("HTTP 서버를 시작합니다")

	err := e.Start(fmt.Sprintf(":%d", port))

	if err == nil || errors.Is(err, http.ErrServerClosed) {
		applog.WithComponent(component).Info("HTTP 서버가 정상적으로 종료되었습니다")
		return
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"port":  port,
		"error": err,
	}).Error("HTTP 서버가 예기치 않은 오류로 종료되었습니다")
}

// waitForShutdown 종료 신호를 대기하고 Graceful Shutdown을 수행합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, e *echo.Echo, httpServerDone chan struct{}) {
	select {
	case <-serviceStopCtx.Done():
		applog.WithComponent(component).Info("서비스 종료 진입: API 서비스를 정리합니다")

	case <-httpServerDone:
		// 포트 바인딩 실패 등으로 서버가 이미 종료된 경우 상태만 정리합니다.
		applog.WithComponent(component).Error("HTTP 서버가 예기치 않게 종료되어 API 서비스를 정리합니다")

		s.cleanup()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("HTTP 서버 Graceful Shutdown에 실패하였습니다")
	}

	<-httpServerDone

	s.cleanup()

	applog.WithComponent(component).Info("서비스 종료 완료: API 서비스가 정상적으로 정리되었습니다")
}

// cleanup 서비스 실행 상태를 초기화합니다.
func (s *Service) cleanup() {
	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()
}
