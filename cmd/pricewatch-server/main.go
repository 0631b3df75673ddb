package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/darkkaiser/pricewatch-server/internal/config"
	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/fetcher"
	"github.com/darkkaiser/pricewatch-server/internal/notification"
	"github.com/darkkaiser/pricewatch-server/internal/pkg/version"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
	"github.com/darkkaiser/pricewatch-server/internal/service"
	"github.com/darkkaiser/pricewatch-server/internal/service/api"
	"github.com/darkkaiser/pricewatch-server/internal/tracker"
	"github.com/darkkaiser/pricewatch-server/internal/tracker/storage"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	log "github.com/sirupsen/logrus"
)

const (
	banner = `
  ____         _               __        __     _         _
 |  _ \  _ __ (_)  ___  ___    \ \      / /__ _| |_  ___ | |__
 | |_) || '__|| | / __|/ _ \    \ \ /\ / // _` + "`" + ` | __|/ __|| '_ \
 |  __/ | |   | || (__|  __/     \ V  V /| (_| | |_| (__ | | | |
 |_|    |_|   |_| \___|\___|      \_/\_/  \__,_|\__|\___||_| |_|
                                                 %s
                                                        developed by DarkKaiser
--------------------------------------------------------------------------------
`
)

func main() {
	// 1. 환경설정 로드 (로그 설정에 필요하므로 가장 먼저 수행한다)
	var appConfig *config.AppConfig
	var err error
	if len(os.Args) > 1 {
		appConfig, err = config.LoadWithFile(os.Args[1])
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		// 로거 초기화 전이므로 표준 에러에 출력
		fmt.Fprintf(os.Stderr, "[FATAL] 환경설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	// 2. 로그 시스템 초기화
	var logOpts applog.Options
	if appConfig.Debug {
		logOpts = applog.NewDevelopmentConfig(config.AppName)
	} else {
		logOpts = applog.NewProductionConfig(config.AppName)
	}

	appLogCloser, err := applog.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 로그 시스템 초기화 실패. 서버 구동을 중단합니다. (Cause: %v)\n", err)
		os.Exit(1)
	}
	defer appLogCloser.Close()

	// 3. 로그 레벨 최종 확정
	applog.SetDebugMode(appConfig.Debug)

	// 아스키아트 출력(https://ko.rakko.tools/tools/68/, 폰트:standard)
	buildInfo := version.Get()
	fmt.Printf(banner, buildInfo.Version)

	// 빌드 정보 출력
	applog.WithComponentAndFields("main", log.Fields{
		"version": buildInfo.String(),
		"env":     map[bool]string{true: "development", false: "production"}[appConfig.Debug],
	}).Info("서버 초기화 시작")

	// 설정값에 대한 권장사항을 점검한다. (경고만 출력하며 구동은 계속한다)
	for _, warning := range appConfig.VerifyRecommendations() {
		applog.WithComponent("main").Warn(warning)
	}

	// 가격 감지 파이프라인을 구성한다.
	detector := detect.NewDetector(detect.NewLocaleTable())
	f := fetcher.NewFromConfig(fetcher.Config{
		MaxRetries:                   appConfig.Fetch.MaxRetries,
		MinRetryDelay:                appConfig.Fetch.RetryDelayDuration(),
		MaxRetryDelay:                appConfig.Fetch.RetryDelayDuration() * 4,
		MaxBytes:                     appConfig.Fetch.MaxBodyBytes,
		RequestsPerSecond:            appConfig.Fetch.RequestsPerSecond,
		Burst:                        appConfig.Fetch.Burst,
		EnableUserAgentRandomization: appConfig.Fetch.RandomUserAgent,
	})
	loader := scraper.New(f)

	fileStore, err := storage.NewFileStore(appConfig.Storage.Path)
	if err != nil {
		log.Fatalf("상품 저장소 초기화 실패: %v", err)
	}

	// 서비스를 생성하고 초기화한다.
	trackerService := tracker.NewService(appConfig, detector, loader, fileStore)
	apiService := api.NewService(appConfig, trackerService)

	senders := make([]notification.Sender, 0, len(appConfig.Notifiers.Telegrams))
	for _, t := range appConfig.Notifiers.Telegrams {
		sender, err := notification.NewTelegramSender(t.ID, t.BotToken, t.ChatID)
		if err != nil {
			log.Fatalf("텔레그램 알림 채널(%s) 초기화 실패: %v", t.ID, err)
		}
		senders = append(senders, sender)
	}
	trackerService.SetNotificationSender(notification.NewDispatcherFromSenders(senders...))

	// Set up cancellation context and waitgroup
	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	// 서비스를 시작한다.
	services := []service.Service{trackerService, apiService}
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("서비스 초기화 실패")

			cancel() // 다른 서비스들도 종료
			serviceStopWG.Wait()

			log.Fatal("서비스 초기화 실패로 프로그램을 종료합니다")
		}
	}

	// Handle sigterm and await termC signal
	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("서버 가동 완료")

	<-termC // Blocks here until interrupted

	// Handle shutdown
	applog.WithComponent("main").Info("Shutdown signal received")
	cancel()             // Signal cancellation to context.Context
	serviceStopWG.Wait() // Block here until are workers are done
}
