// Package tracker 상품 가격의 주기적인 추적을 담당합니다.
//
// 탐지 결과의 확정(Commit)으로 추적 상품이 등록되면, 상품마다 독립적인 폴링
// 루프가 고정된 가격 위치를 주기적으로 재파싱하여 변동을 기록합니다.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/config"
	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/notification"
	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
	"github.com/darkkaiser/pricewatch-server/pkg/cronx"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	"github.com/robfig/cron/v3"
)

// component 추적 서비스의 로깅용 컴포넌트 이름
const component = "tracker"

// defaultQueueSize 갱신 결과 이벤트 채널의 기본 버퍼 크기입니다.
// 이벤트 펌프가 저장/알림을 처리하는 동안 폴링 루프가 블로킹되는 것을 줄입니다.
const defaultQueueSize = 16

// Store 추적 상품 상태를 영속화하는 저장소 인터페이스입니다.
type Store interface {
	// Load 저장된 상품 목록을 읽어옵니다. 파일이 없으면 빈 목록을 반환합니다.
	Load() ([]*TrackedProduct, error)

	// Save 상품 목록 전체를 원자적으로 저장합니다.
	Save(products []*TrackedProduct) error
}

// Detection 탐지 결과와 확정에 필요한 컨텍스트를 담는 세션입니다.
//
// Detect()가 생성하며, 사용자가 후보 목록에서 가격을 선택해 Commit()으로
// 전달할 때까지의 중간 상태를 보관합니다.
type Detection struct {
	// URL 탐지를 수행한 상품 페이지 주소
	URL string

	// Result 로케일/상품명/가격 후보 목록
	Result *detect.Result

	// DetectedAt 탐지 수행 시각
	DetectedAt time.Time
}

// Service 추적 상품의 등록과 생명주기를 총괄하는 서비스입니다.
//
// 상품 레지스트리에 대한 접근은 뮤텍스로 보호되지만, 개별 상품의 상태는
// 해당 상품의 폴링 루프만이 변경합니다. 모든 갱신 결과는 단일 이벤트 펌프로
// 직렬화되어 저장과 알림이 순서대로 처리됩니다.
type Service struct {
	appConfig *config.AppConfig

	detector *detect.Detector
	loader   scraper.Loader
	store    Store

	// products / trackers 등록된 상품과 그 폴링 루프. mu로 보호됩니다.
	products map[string]*TrackedProduct
	trackers map[string]*productTracker
	mu       sync.Mutex

	// events 모든 폴링 루프가 갱신 결과를 발행하는 채널입니다.
	events chan UpdateResult

	// sender 변동/장애 알림을 전달할 알림 채널입니다. Start() 전에 주입되어야 합니다.
	sender notification.Sender

	// sweeper 전체 상품 자동 재탐지 스윕을 구동하는 Cron 스케줄러입니다.
	sweeper *cron.Cron

	// loopCtx 모든 폴링 루프의 부모 컨텍스트입니다.
	loopCtx    context.Context
	loopCancel context.CancelFunc

	running   bool
	runningMu sync.Mutex
}

// NewService 추적 서비스를 생성합니다.
func NewService(appConfig *config.AppConfig, detector *detect.Detector, loader scraper.Loader, store Store) *Service {
	return &Service{
		appConfig: appConfig,

		detector: detector,
		loader:   loader,
		store:    store,

		products: make(map[string]*TrackedProduct),
		trackers: make(map[string]*productTracker),

		events: make(chan UpdateResult, defaultQueueSize),
	}
}

// SetNotificationSender 변동 및 장애 알림을 전달할 Sender를 주입합니다.
// Start() 호출 전에 주입되어야 하며, 누락 시 Start()가 에러를 반환합니다.
func (s *Service) SetNotificationSender(sender notification.Sender) {
	s.sender = sender
}

// Detect 상품 페이지를 수집하여 로케일/상품명/가격 후보를 탐지합니다.
//
// 반환된 Detection의 후보 목록에서 가격을 선택하여 Commit()으로 전달하면
// 추적이 시작됩니다.
func (s *Service) Detect(ctx context.Context, url string) (*Detection, error) {
	page, err := s.loader.Load(ctx, url)
	if err != nil {
		return nil, detect.WrapError(err, detect.ErrorKindFetchFailed, "상품 페이지를 가져올 수 없습니다.")
	}
	if page.Redirected {
		return nil, detect.NewError(detect.ErrorKindFetchFailed, fmt.Sprintf("상품 페이지가 다른 위치로 리다이렉트되었습니다. (최종 URL: %s)", page.FinalURL))
	}

	result, err := s.detector.Detect(page.Document)
	if err != nil {
		return nil, err
	}

	return &Detection{
		URL:        url,
		Result:     result,
		DetectedAt: time.Now(),
	}, nil
}

// Commit 탐지 결과에서 선택된 가격 후보를 확정하고 추적을 시작합니다.
//
// selected는 Detection.Result.Prices의 인덱스입니다. 서비스가 이미 실행 중이면
// 폴링 루프가 즉시 시작되며, 실행 전이면 Start() 시점에 함께 시작됩니다.
func (s *Service) Commit(detection *Detection, selected int, autoDetect bool) (*TrackedProduct, error) {
	if detection == nil || detection.Result == nil {
		return nil, apperrors.New(apperrors.InvalidInput, "확정할 탐지 결과가 없습니다")
	}
	if selected < 0 || selected >= len(detection.Result.Prices) {
		return nil, apperrors.Newf(apperrors.InvalidInput, "선택된 가격 후보의 번호가 유효하지 않습니다: %d (후보 수: %d)", selected, len(detection.Result.Prices))
	}

	candidate := detection.Result.Prices[selected]
	now := time.Now()

	product := &TrackedProduct{
		ID:             ProductID(detection.URL),
		URL:            detection.URL,
		DisplayName:    detection.Result.Name,
		SelectedAmount: candidate.Parsed.Amount,
		PriceLocation:  candidate.Location,
		Locale:         detection.Result.Locale,
		AutoDetect:     autoDetect,
		NameUpdatedAt:  now,
		PriceUpdatedAt: now,
	}

	if err := s.register(product); err != nil {
		return nil, err
	}

	return product.Clone(), nil
}

// CommitManual 자동 탐지를 생략하고 수동으로 지정된 위치/로케일로 추적을 시작합니다.
//
// 상품명, 가격 위치(selector), 로케일은 수동 모드의 필수 항목이며,
// 누락 시 MissingManualParameters로 거부됩니다.
func (s *Service) CommitManual(url, name string, location *detect.Location, localeSpec string, autoDetect bool) (*TrackedProduct, error) {
	if url == "" || name == "" || location == nil || location.Selector == "" || localeSpec == "" {
		return nil, detect.NewError(detect.ErrorKindMissingManualParameters, "수동 등록에는 상품명, 가격 위치(selector), 로케일이 모두 필요합니다.")
	}

	locale := s.resolveLocaleSpec(localeSpec)
	if locale == nil {
		return nil, detect.NewError(detect.ErrorKindMissingManualParameters, fmt.Sprintf("지원하지 않는 로케일입니다: '%s' (BCP-47 태그 또는 ISO 4217 코드)", localeSpec))
	}

	now := time.Now()
	product := &TrackedProduct{
		ID:             ProductID(url),
		URL:            url,
		DisplayName:    name,
		PriceLocation:  location,
		Locale:         locale,
		AutoDetect:     autoDetect,
		NameUpdatedAt:  now,
		PriceUpdatedAt: now,
	}

	if err := s.register(product); err != nil {
		return nil, err
	}

	return product.Clone(), nil
}

// resolveLocaleSpec 설정 문자열(BCP-47 태그 또는 통화 기호/ISO 코드)을 로케일로 해석합니다.
func (s *Service) resolveLocaleSpec(spec string) *detect.LocaleDescriptor {
	table := s.detector.Table()

	if locale := table.ByLanguageTag(spec); locale != nil {
		return locale
	}
	return table.BySymbolOrISO(spec)
}

// register 상품을 레지스트리에 추가하고, 서비스가 실행 중이면 폴링 루프를 시작합니다.
func (s *Service) register(product *TrackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return apperrors.Newf(apperrors.InvalidInput, "이미 추적 중인 상품입니다. (상품 ID: %s, URL: %s)", product.ID, product.URL)
	}

	s.products[product.ID] = product
	s.trackers[product.ID] = s.newTracker(product)

	applog.WithComponentAndFields(component, applog.Fields{
		"product_id": product.ID,
		"url":        product.URL,
		"name":       product.DisplayName,
		"amount":     product.SelectedAmount,
	}).Info("추적 상품 등록 완료")

	s.runningMu.Lock()
	running := s.running
	s.runningMu.Unlock()

	if running {
		return s.trackers[product.ID].Start(s.loopCtx)
	}

	return nil
}

// newTracker 상품의 갱신 주기 설정을 반영하여 폴링 루프를 생성합니다.
func (s *Service) newTracker(product *TrackedProduct) *productTracker {
	interval := s.appConfig.Tracking.IntervalDuration()
	jitter := s.appConfig.Tracking.JitterDuration()

	// 상품별 갱신 주기 재정의
	for _, p := range s.appConfig.Products {
		if ProductID(p.URL) == product.ID && p.Interval != "" {
			if d, err := time.ParseDuration(p.Interval); err == nil {
				interval = d
			}
			break
		}
	}

	r := &refresher{loader: s.loader, detector: s.detector}
	return newProductTracker(product, r, interval, jitter, s.events)
}

// Products 등록된 모든 상품의 복사본을 반환합니다.
func (s *Service) Products() []*TrackedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]*TrackedProduct, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p.Clone())
	}
	return products
}

// Product 상품 ID로 상품 복사본을 조회합니다.
func (s *Service) Product(id string) (*TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return nil, apperrors.Newf(apperrors.NotFound, "추적 중인 상품을 찾을 수 없습니다. (상품 ID: %s)", id)
	}
	return p.Clone(), nil
}

// CheckNow 상품의 현재 가격을 즉시 확인합니다.
//
// 폴링 루프와의 경합을 피하기 위해 상품 상태의 복사본으로 갱신 주기를
// 수행하며, 추적 상태(이력, 현재 가격)는 변경하지 않습니다.
func (s *Service) CheckNow(ctx context.Context, id string) (UpdateResult, error) {
	product, err := s.Product(id)
	if err != nil {
		return UpdateResult{}, err
	}

	r := &refresher{loader: s.loader, detector: s.detector}
	return r.refresh(ctx, product), nil
}

// Start 추적 서비스를 시작합니다.
//
// 저장소에서 이전 상태를 복원하고 설정에 정의된 상품을 등록한 뒤,
// 모든 폴링 루프와 이벤트 펌프, 자동 재탐지 스윕을 구동합니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	applog.WithComponent(component).Info("서비스 시작 진입: 추적 서비스 초기화 프로세스를 시작합니다")

	if s.sender == nil {
		defer serviceStopWG.Done()
		return apperrors.New(apperrors.Internal, "NotificationSender가 초기화되지 않았습니다")
	}

	// 상품 복원 과정에서 register()가 실행 상태를 확인하므로,
	// runningMu를 잡은 채로 복원을 진행하면 안 됩니다.
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("추적 서비스가 이미 실행 중입니다 (중복 호출)")
		return nil
	}
	s.loopCtx, s.loopCancel = context.WithCancel(context.Background())
	s.running = true
	s.runningMu.Unlock()

	// 저장소의 이전 상태를 복원하고 설정의 상품 목록과 병합합니다.
	if err := s.restoreProducts(serviceStopCtx); err != nil {
		s.loopCancel()
		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()
		defer serviceStopWG.Done()
		return err
	}

	s.mu.Lock()
	for id, t := range s.trackers {
		// 복원 도중 register()를 거쳐 이미 기동된 루프는 건너뜁니다.
		if t.State() != TrackStateIdle {
			continue
		}
		if err := t.Start(s.loopCtx); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": id,
				"error":      err,
			}).Error("상품 폴링 루프 시작에 실패하였습니다")
		}
	}
	s.mu.Unlock()

	s.startSweeper()

	go s.runEventPump(serviceStopCtx, serviceStopWG)

	applog.WithComponent(component).Info("서비스 시작 완료: 추적 서비스가 정상적으로 초기화되었습니다")

	return nil
}

// restoreProducts 저장소의 상품 상태를 복원하고 설정의 상품 정의와 병합합니다.
//
// 같은 URL이 양쪽에 모두 있으면 저장소의 상태(이력 포함)가 우선하며,
// 설정에만 있는 상품은 수동 지정 또는 전체 자동 탐지로 새로 등록됩니다.
func (s *Service) restoreProducts(ctx context.Context) error {
	persisted, err := s.store.Load()
	if err != nil {
		return apperrors.Wrap(err, apperrors.System, "추적 상품 상태 복원에 실패했습니다")
	}

	s.mu.Lock()
	for _, p := range persisted {
		if !p.Ready() {
			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": p.ID,
				"url":        p.URL,
			}).Warn("저장된 상품이 추적 가능한 상태가 아니므로 건너뜁니다")
			continue
		}

		s.products[p.ID] = p
		s.trackers[p.ID] = s.newTracker(p)
	}
	s.mu.Unlock()

	for _, pc := range s.appConfig.Products {
		id := ProductID(pc.URL)

		s.mu.Lock()
		_, exists := s.products[id]
		s.mu.Unlock()
		if exists {
			continue
		}

		if err := s.registerFromConfig(ctx, pc); err != nil {
			// 기동 시점의 탐지 실패는 전체 기동을 막지 않습니다.
			applog.WithComponentAndFields(component, applog.Fields{
				"url":   pc.URL,
				"error": err,
			}).Error("설정에 정의된 상품 등록에 실패하였습니다")
		}
	}

	return nil
}

// registerFromConfig 설정에 정의된 상품 하나를 등록합니다.
//
// manual 항목이 있으면 수동 등록을, 없으면 전체 자동 탐지 후 최고 점수의
// 가격 후보를 선택하여 등록합니다.
func (s *Service) registerFromConfig(ctx context.Context, pc config.ProductConfig) error {
	if pc.Manual != nil {
		location := &detect.Location{
			Selector:  pc.Manual.Selector,
			Attribute: pc.Manual.Attribute,
			JSONPath:  pc.Manual.JSONPath,
		}

		_, err := s.CommitManual(pc.URL, pc.Manual.Name, location, pc.Manual.Locale, pc.AutoDetect)
		return err
	}

	detection, err := s.Detect(ctx, pc.URL)
	if err != nil {
		return err
	}

	// 사용자 선택이 없는 기동 시 등록은 최고 점수의 후보를 선택합니다.
	_, err = s.Commit(detection, 0, pc.AutoDetect)
	return err
}

// startSweeper 전체 상품 자동 재탐지 스윕 스케줄러를 시작합니다.
func (s *Service) startSweeper() {
	if !s.appConfig.Tracking.AutoDetectSweep.Runnable {
		return
	}

	s.sweeper = cron.New(
		cron.WithParser(cronx.StandardParser()),
		cron.WithChain(
			cron.Recover(cron.VerbosePrintfLogger(applog.StandardLogger())),
			cron.SkipIfStillRunning(cron.VerbosePrintfLogger(applog.StandardLogger())),
		),
	)

	timeSpec := s.appConfig.Tracking.AutoDetectSweep.TimeSpec
	if _, err := s.sweeper.AddFunc(timeSpec, func() {
		s.sweepAutoDetect(s.loopCtx)
	}); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"time_spec": timeSpec,
			"error":     err,
		}).Error("자동 재탐지 스윕 스케줄 등록에 실패하였습니다")
		return
	}

	s.sweeper.Start()

	applog.WithComponentAndFields(component, applog.Fields{
		"time_spec": timeSpec,
	}).Info("자동 재탐지 스윕 스케줄러 시작")
}

// sweepAutoDetect 모든 상품에 대해 전체 탐지를 다시 수행하여, 문서 구조 변경으로
// 깨진 가격 위치를 복구합니다.
//
// 상품 상태는 폴링 루프만 변경할 수 있으므로, 위치 갱신이 필요한 상품은
// 루프를 중지한 뒤 갱신하고 다시 시작합니다.
func (s *Service) sweepAutoDetect(ctx context.Context) {
	applog.WithComponent(component).Info("자동 재탐지 스윕 시작")

	for _, product := range s.Products() {
		if ctx.Err() != nil {
			return
		}

		detection, err := s.Detect(ctx, product.URL)
		if err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": product.ID,
				"error":      err,
			}).Warn("자동 재탐지에 실패하였습니다")
			continue
		}

		best := detection.Result.BestPrice()
		if best == nil || best.Location == nil {
			continue
		}

		s.mu.Lock()
		live, exists := s.products[product.ID]
		t := s.trackers[product.ID]
		s.mu.Unlock()
		if !exists {
			continue
		}

		if live.PriceLocation != nil && live.PriceLocation.Selector == best.Location.Selector &&
			live.PriceLocation.Attribute == best.Location.Attribute &&
			live.PriceLocation.JSONPath == best.Location.JSONPath {
			continue
		}

		// 루프를 멈춘 동안에만 가격 소스를 교체할 수 있습니다.
		t.Stop()

		live.setPriceSource(best.Location, detection.Result.Locale)

		applog.WithComponentAndFields(component, applog.Fields{
			"product_id": live.ID,
			"selector":   best.Location.Selector,
		}).Info("자동 재탐지로 가격 위치를 갱신하였습니다")

		if err := t.Start(s.loopCtx); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": live.ID,
				"error":      err,
			}).Error("가격 위치 갱신 후 폴링 루프 재시작에 실패하였습니다")
		}
	}
}

// runEventPump 모든 폴링 루프의 갱신 결과를 직렬화하여 저장과 알림을 처리합니다.
//
// Note: 이 함수는 블로킹되며, Start()에서 별도의 고루틴으로 실행됩니다.
func (s *Service) runEventPump(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	for {
		select {
		case result := <-s.events:
			s.handleResult(result)

		case <-serviceStopCtx.Done():
			s.handleStop()
			return
		}
	}
}

// handleResult 갱신 결과 하나를 저장하고, 변동/장애 알림을 전파합니다.
func (s *Service) handleResult(result UpdateResult) {
	// LastChecked를 포함한 상태 변경을 디스크에 반영합니다.
	if err := s.store.Save(s.Products()); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"product_id": result.ProductID,
			"error":      err,
		}).Error("추적 상품 상태 저장에 실패하였습니다")
	}

	product, err := s.Product(result.ProductID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if result.ChangedPrice {
		_ = s.sender.Notify(ctx, notification.Event{
			Kind:        notification.EventPriceChanged,
			ProductID:   product.ID,
			ProductName: product.DisplayName,
			URL:         product.URL,
			Message: fmt.Sprintf("가격이 변동되었습니다: %s → %s",
				formatAmount(result.PreviousAmount, product.Locale),
				formatAmount(result.NewAmount, product.Locale)),
			OccurredAt: result.CheckedAt,
		})
	}

	if result.ChangedName {
		_ = s.sender.Notify(ctx, notification.Event{
			Kind:        notification.EventNameChanged,
			ProductID:   product.ID,
			ProductName: product.DisplayName,
			URL:         product.URL,
			Message:     fmt.Sprintf("상품명이 변경되었습니다: %s → %s", result.PreviousName, result.NewName),
			OccurredAt:  result.CheckedAt,
		})
	}

	if result.Terminal() {
		_ = s.sender.Notify(ctx, notification.Event{
			Kind:          notification.EventTrackingStopped,
			ProductID:     product.ID,
			ProductName:   product.DisplayName,
			URL:           product.URL,
			Message:       "예기치 않은 장애로 상품 추적이 중단되었습니다. 서버 로그를 확인해주세요.",
			ErrorOccurred: true,
			OccurredAt:    result.CheckedAt,
		})
	}
}

// handleStop 서비스 종료 신호 수신 시, 모든 폴링 루프와 스윕을 정리하고
// 마지막 상태를 저장합니다.
func (s *Service) handleStop() {
	applog.WithComponent(component).Info("서비스 종료 진입: 추적 서비스를 정리합니다")

	if s.sweeper != nil {
		<-s.sweeper.Stop().Done()
	}

	if s.loopCancel != nil {
		s.loopCancel()
	}

	s.mu.Lock()
	trackers := make([]*productTracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		trackers = append(trackers, t)
	}
	s.mu.Unlock()

	// 진행 중인 갱신이 완료될 때까지 기다립니다. 이력이 절반만 기록된 채
	// 저장되는 것을 방지합니다.
	for _, t := range trackers {
		t.Stop()
	}

	if err := s.store.Save(s.Products()); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("종료 시점의 추적 상품 상태 저장에 실패하였습니다")
	}

	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("서비스 종료 완료: 추적 서비스가 정상적으로 정리되었습니다")
}

// formatAmount 센트 단위 금액을 통화 기호와 함께 표시합니다.
func formatAmount(amount int64, locale *detect.LocaleDescriptor) string {
	whole := amount / 100
	frac := amount % 100
	if frac < 0 {
		frac = -frac
	}

	symbol := ""
	if locale != nil {
		symbol = locale.CurrencySymbol
	}

	if frac == 0 {
		return fmt.Sprintf("%s%d", symbol, whole)
	}
	return fmt.Sprintf("%s%d.%02d", symbol, whole, frac)
}
