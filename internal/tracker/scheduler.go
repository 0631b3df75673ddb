package tracker

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

const (
	// minTrackDelay 갱신 주기의 최소 하한입니다.
	// 설정 실수나 과도한 지터로 인한 대상 서버 플러딩을 방지합니다.
	minTrackDelay = 5 * time.Second

	// stopPollInterval Stop()이 루프 종료를 확인하는 폴링 간격입니다.
	stopPollInterval = 10 * time.Millisecond
)

// TrackState 상품 폴링 루프의 상태입니다.
type TrackState int32

const (
	// TrackStateIdle 추적이 시작되지 않았거나 정상 중지됨
	TrackStateIdle TrackState = iota

	// TrackStateRunning 폴링 루프 실행 중
	TrackStateRunning

	// TrackStateStopping 중지 요청 후 루프 종료 대기 중
	TrackStateStopping

	// TrackStateFailed 예기치 않은 장애로 루프가 종료됨. 명시적으로 재시작해야 합니다.
	TrackStateFailed
)

// trackStateNames TrackState의 문자열 표현 테이블입니다.
var trackStateNames = map[TrackState]string{
	TrackStateIdle:     "idle",
	TrackStateRunning:  "running",
	TrackStateStopping: "stopping",
	TrackStateFailed:   "failed",
}

// String TrackState의 문자열 표현을 반환합니다.
func (s TrackState) String() string {
	if name, exists := trackStateNames[s]; exists {
		return name
	}
	return "unknown"
}

// productTracker 상품 하나의 폴링 루프를 소유합니다.
//
// 상품마다 최대 하나의 폴링 고루틴만 존재하며, 상품 상태는 그 고루틴 안에서만
// 변경됩니다. 취소는 협조적입니다: 루프는 대기에서 깨어난 직후와 갱신 시작 전에
// 취소 신호를 확인하고, 진행 중인 갱신은 중단하지 않고 완료시킵니다.
// (이력이 절반만 반영되는 것을 방지)
type productTracker struct {
	product *TrackedProduct

	refresher *refresher

	interval time.Duration
	jitter   time.Duration

	events chan<- UpdateResult

	state  atomic.Int32
	cancel context.CancelFunc
}

func newProductTracker(product *TrackedProduct, r *refresher, interval, jitter time.Duration, events chan<- UpdateResult) *productTracker {
	return &productTracker{
		product:   product,
		refresher: r,
		interval:  interval,
		jitter:    jitter,
		events:    events,
	}
}

// State 현재 폴링 루프의 상태를 반환합니다.
func (t *productTracker) State() TrackState {
	return TrackState(t.state.Load())
}

// Start 폴링 루프를 시작합니다.
//
// 상품이 추적 준비가 되지 않았거나(선택된 가격/로케일 없음) 이미 실행 중이면
// 에러를 반환합니다.
func (t *productTracker) Start(ctx context.Context) error {
	if !t.product.Ready() {
		return apperrors.Newf(apperrors.InvalidInput, "추적을 시작할 수 없습니다. 상품에 선택된 가격 위치 또는 로케일이 없습니다. (상품 ID: %s)", t.product.ID)
	}
	if !t.state.CompareAndSwap(int32(TrackStateIdle), int32(TrackStateRunning)) {
		return apperrors.Newf(apperrors.InvalidInput, "추적을 시작할 수 없습니다. 이미 실행 중이거나 장애 상태입니다. (상품 ID: %s, 상태: %s)", t.product.ID, t.State())
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.loop(loopCtx)

	applog.WithComponentAndFields(component, applog.Fields{
		"product_id": t.product.ID,
		"interval":   t.interval.String(),
		"jitter":     t.jitter.String(),
	}).Info("상품 추적 시작")

	return nil
}

// Stop 폴링 루프의 취소를 요청하고, 루프가 실제로 종료된 것을 확인할 때까지
// 폴링 방식으로 대기합니다. 여러 번 호출해도 안전합니다.
func (t *productTracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}

	// 진행 중인 갱신은 완료될 때까지 기다립니다. (블로킹 조인이 아닌 폴링)
	t.state.CompareAndSwap(int32(TrackStateRunning), int32(TrackStateStopping))
	for TrackState(t.state.Load()) == TrackStateStopping {
		time.Sleep(stopPollInterval)
	}
}

// loop 폴링 루프 본체입니다. 취소되거나 장애가 발생할 때까지 반복합니다.
func (t *productTracker) loop(ctx context.Context) {
	defer func() {
		// 정상 종료는 Idle, 장애 종료는 Failed 상태로 남습니다.
		t.state.CompareAndSwap(int32(TrackStateRunning), int32(TrackStateIdle))
		t.state.CompareAndSwap(int32(TrackStateStopping), int32(TrackStateIdle))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.nextDelay()):
		}

		// 대기에서 깨어난 직후, 갱신을 시작하기 전에 취소를 다시 확인합니다.
		if ctx.Err() != nil {
			return
		}

		result := t.refreshProtected(ctx)
		t.emit(result)

		if result.Terminal() {
			t.state.Store(int32(TrackStateFailed))

			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": t.product.ID,
			}).Error("예기치 않은 장애로 상품 추적이 중단되었습니다")
			return
		}
	}
}

// refreshProtected 갱신 주기를 수행하며, 루프 내부의 예기치 않은 패닉을
// 종료적 장애(TrackingFault)로 변환합니다. 일반적인 탐지 실패는 여기에
// 도달하지 않고 복구 가능한 결과로 기록됩니다.
func (t *productTracker) refreshProtected(ctx context.Context) (result UpdateResult) {
	defer func() {
		if r := recover(); r != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"product_id": t.product.ID,
				"panic":      r,
			}).Error("갱신 주기 수행 중 패닉이 발생하였습니다")

			result = UpdateResult{
				ProductID: t.product.ID,
				ErrorKind: detect.ErrorKindTrackingFault,
				CheckedAt: time.Now(),
			}
		}
	}()

	return t.refresher.refresh(ctx, t.product)
}

// emit 결과를 이벤트 채널로 발행합니다. 수신자가 없으면 유실 없이 대기하지만,
// 서비스 종료 중에는 채널이 소비되지 않을 수 있으므로 짧게만 기다립니다.
func (t *productTracker) emit(result UpdateResult) {
	select {
	case t.events <- result:
	case <-time.After(time.Second):
		applog.WithComponentAndFields(component, applog.Fields{
			"product_id": t.product.ID,
		}).Warn("이벤트 채널이 가득 차 갱신 결과를 버립니다")
	}
}

// nextDelay 다음 갱신까지의 대기 시간을 계산합니다: interval ± jitter.
// 과도한 요청을 막기 위해 최소 하한(minTrackDelay) 아래로는 내려가지 않습니다.
func (t *productTracker) nextDelay() time.Duration {
	delay := t.interval
	if t.jitter > 0 {
		// -jitter ~ +jitter 범위의 무작위 오프셋
		delay += time.Duration(rand.Int64N(int64(t.jitter)*2+1)) - t.jitter
	}
	if delay < minTrackDelay {
		delay = minTrackDelay
	}
	return delay
}
