package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
)

// panicLoader 갱신 주기 내부의 예기치 않은 패닉을 흉내내는 Loader입니다.
type panicLoader struct{}

var _ scraper.Loader = (*panicLoader)(nil)

func (l *panicLoader) Load(context.Context, string) (*scraper.Page, error) {
	panic("unexpected fault")
}

func TestTrackState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", TrackStateIdle.String())
	assert.Equal(t, "running", TrackStateRunning.String())
	assert.Equal(t, "stopping", TrackStateStopping.String())
	assert.Equal(t, "failed", TrackStateFailed.String())
	assert.Equal(t, "unknown", TrackState(99).String())
}

func TestProductTracker_StartNotReady(t *testing.T) {
	t.Parallel()

	product := newDollarProduct()
	product.PriceLocation = nil

	tracker := newProductTracker(product, newTestRefresher(&fakeLoader{}), time.Minute, 0, make(chan UpdateResult, 1))

	err := tracker.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, TrackStateIdle, tracker.State())
}

func TestProductTracker_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	loader := &fakeLoader{}
	tracker := newProductTracker(newDollarProduct(), newTestRefresher(loader), time.Hour, 0, make(chan UpdateResult, 1))

	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Stop()

	// 상품마다 폴링 루프는 최대 하나만 존재해야 한다.
	err := tracker.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, TrackStateRunning, tracker.State())
}

// 첫 갱신 주기 전에 중지하면 갱신 없이 루프가 종료되어야 한다.
func TestProductTracker_StopBeforeFirstCycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	loader := &fakeLoader{}
	tracker := newProductTracker(newDollarProduct(), newTestRefresher(loader), time.Hour, 0, make(chan UpdateResult, 1))

	require.NoError(t, tracker.Start(context.Background()))
	assert.Equal(t, TrackStateRunning, tracker.State())

	tracker.Stop()

	assert.Equal(t, TrackStateIdle, tracker.State())
	assert.Zero(t, loader.loadCalls())
}

func TestProductTracker_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker := newProductTracker(newDollarProduct(), newTestRefresher(&fakeLoader{}), time.Hour, 0, make(chan UpdateResult, 1))

	// 시작 전이나 중복으로 호출해도 안전해야 한다.
	tracker.Stop()

	require.NoError(t, tracker.Start(context.Background()))
	tracker.Stop()
	tracker.Stop()

	assert.Equal(t, TrackStateIdle, tracker.State())
}

// 갱신 주기 내부의 패닉은 루프 종료를 의미하는 결과로 변환되어야 한다.
func TestProductTracker_RefreshPanicBecomesTrackingFault(t *testing.T) {
	t.Parallel()

	tracker := newProductTracker(newDollarProduct(), newTestRefresher(&panicLoader{}), time.Hour, 0, make(chan UpdateResult, 1))

	result := tracker.refreshProtected(context.Background())

	assert.Equal(t, detect.ErrorKindTrackingFault, result.ErrorKind)
	assert.True(t, result.Terminal())
	assert.False(t, result.Success)
	assert.Equal(t, tracker.product.ID, result.ProductID)
}

// blockingLoader 갱신이 시작되면 started를 알리고, release가 닫힐 때까지 대기합니다.
type blockingLoader struct {
	started chan struct{}
	release chan struct{}
	page    *scraper.Page
}

var _ scraper.Loader = (*blockingLoader)(nil)

func (l *blockingLoader) Load(context.Context, string) (*scraper.Page, error) {
	close(l.started)
	<-l.release
	return l.page, nil
}

// 진행 중인 갱신이 있으면 Stop()은 그 갱신이 끝나고 루프가 종료될 때까지
// 블로킹되어야 하며, 이력이 절반만 반영된 채 남으면 안 된다.
func TestProductTracker_StopWaitsForInflightRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	product := newDollarProduct()
	loader := &blockingLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		page:    pageFromHTML(t, `<html><body><span class="price">$17.49</span></body></html>`),
	}
	events := make(chan UpdateResult, 1)

	// 최소 하한으로 보정되므로 첫 갱신은 minTrackDelay 후에 시작된다.
	tracker := newProductTracker(product, newTestRefresher(loader), time.Millisecond, 0, events)
	require.NoError(t, tracker.Start(context.Background()))

	select {
	case <-loader.started:
	case <-time.After(2 * minTrackDelay):
		t.Fatal("갱신 주기가 시작되지 않았습니다")
	}

	stopDone := make(chan struct{})
	go func() {
		tracker.Stop()
		close(stopDone)
	}()

	// 갱신이 끝나기 전에는 Stop()이 반환되면 안 된다.
	select {
	case <-stopDone:
		t.Fatal("진행 중인 갱신이 끝나기 전에 Stop()이 반환되었습니다")
	case <-time.After(100 * time.Millisecond):
	}

	close(loader.release)

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("갱신 완료 후에도 Stop()이 반환되지 않았습니다")
	}

	assert.Equal(t, TrackStateIdle, tracker.State())

	// 갱신은 중단 없이 완료되어, 변경 전후 값이 모두 이력에 남아야 한다.
	assert.Equal(t, int64(1749), product.SelectedAmount)
	require.Len(t, product.PriceHistory, 2)
	assert.Equal(t, int64(1999), product.PriceHistory[0].Amount)
	assert.Equal(t, int64(1749), product.PriceHistory[1].Amount)

	result := <-events
	assert.True(t, result.ChangedPrice)
}

func TestProductTracker_NextDelay(t *testing.T) {
	t.Parallel()

	// 지터가 없으면 주기가 그대로 사용된다.
	fixed := newProductTracker(newDollarProduct(), nil, 10*time.Minute, 0, nil)
	assert.Equal(t, 10*time.Minute, fixed.nextDelay())

	// 지터는 interval ± jitter 범위를 벗어나지 않는다.
	jittered := newProductTracker(newDollarProduct(), nil, 10*time.Second, 2*time.Second, nil)
	for i := 0; i < 100; i++ {
		delay := jittered.nextDelay()
		assert.GreaterOrEqual(t, delay, 8*time.Second)
		assert.LessOrEqual(t, delay, 12*time.Second)
	}

	// 과도하게 짧은 주기는 최소 하한으로 보정된다.
	short := newProductTracker(newDollarProduct(), nil, time.Second, 0, nil)
	assert.Equal(t, minTrackDelay, short.nextDelay())
}
