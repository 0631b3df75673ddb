package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/darkkaiser/pricewatch-server/internal/config"
	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/notification"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
)

// memStore 테스트용 인메모리 Store 구현체입니다.
type memStore struct {
	mu       sync.Mutex
	products []*TrackedProduct
	loadErr  error
	saves    int
}

var _ Store = (*memStore)(nil)

func (s *memStore) Load() ([]*TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.products, nil
}

func (s *memStore) Save(products []*TrackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = products
	s.saves++
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}

func newTestService(loader scraper.Loader) *Service {
	appConfig := &config.AppConfig{
		Tracking: config.TrackingConfig{Interval: "10m", Jitter: "1m"},
	}
	return NewService(appConfig, detect.NewDetector(detect.NewLocaleTable()), loader, &memStore{})
}

func TestService_Detect(t *testing.T) {
	t.Parallel()

	url := "https://shop.example.com/widget"
	loader := &fakeLoader{pages: map[string]*scraper.Page{
		url: pageFromHTML(t, `<html>
			<head><title>Blue Widget, ShopName.com</title></head>
			<body>
				<h1>Blue Widget</h1>
				<div>Blue Widget</div>
				<p>Blue Widget</p>
				<span class="price">$19.99</span>
			</body>
		</html>`),
	}}

	detection, err := newTestService(loader).Detect(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, url, detection.URL)
	require.NotNil(t, detection.Result)
	assert.NotEmpty(t, detection.Result.Prices)
	assert.False(t, detection.DetectedAt.IsZero())
}

func TestService_Detect_FetchFailed(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{err: errors.New("connection refused")}

	_, err := newTestService(loader).Detect(context.Background(), "https://shop.example.com/widget")
	require.Error(t, err)
	assert.Equal(t, detect.ErrorKindFetchFailed, detect.KindOf(err))
}

func TestService_Detect_Redirected(t *testing.T) {
	t.Parallel()

	url := "https://shop.example.com/widget"
	page := pageFromHTML(t, `<html><body></body></html>`)
	page.Redirected = true
	page.FinalURL = "https://shop.example.com/list"
	loader := &fakeLoader{pages: map[string]*scraper.Page{url: page}}

	_, err := newTestService(loader).Detect(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, detect.ErrorKindFetchFailed, detect.KindOf(err))
}

func TestService_Commit(t *testing.T) {
	t.Parallel()

	url := "https://shop.example.com/widget"
	loader := &fakeLoader{pages: map[string]*scraper.Page{
		url: pageFromHTML(t, `<html>
			<head><title>Blue Widget, ShopName.com</title></head>
			<body>
				<h1>Blue Widget</h1>
				<div>Blue Widget</div>
				<p>Blue Widget</p>
				<span class="price">$19.99</span>
			</body>
		</html>`),
	}}
	service := newTestService(loader)

	detection, err := service.Detect(context.Background(), url)
	require.NoError(t, err)

	product, err := service.Commit(detection, 0, true)
	require.NoError(t, err)

	assert.Equal(t, ProductID(url), product.ID)
	assert.True(t, product.Ready())
	assert.True(t, product.AutoDetect)
	assert.Positive(t, product.SelectedAmount)

	// 등록된 상품이 레지스트리에서 조회되어야 한다.
	registered, err := service.Product(product.ID)
	require.NoError(t, err)
	assert.Equal(t, product, registered)
}

func TestService_Commit_InvalidSelection(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})

	_, err := service.Commit(nil, 0, false)
	require.Error(t, err)

	detection := &Detection{URL: "https://shop.example.com/widget", Result: &detect.Result{}}
	_, err = service.Commit(detection, 0, false)
	require.Error(t, err)
	_, err = service.Commit(detection, -1, false)
	require.Error(t, err)
}

func TestService_CommitManual(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})

	product, err := service.CommitManual(
		"https://shop.example.com/manual",
		"수동 등록 상품",
		&detect.Location{Selector: "span.price"},
		"ko-KR",
		false,
	)
	require.NoError(t, err)

	assert.True(t, product.Ready())
	assert.Equal(t, "수동 등록 상품", product.DisplayName)
	require.NotNil(t, product.Locale)
	assert.Equal(t, "KRW", product.Locale.ISOCode)
}

// 로케일은 ISO 4217 코드로도 지정할 수 있다.
func TestService_CommitManual_ISOCode(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})

	product, err := service.CommitManual(
		"https://shop.example.com/manual-iso",
		"Manual Product",
		&detect.Location{Selector: "span.price"},
		"USD",
		false,
	)
	require.NoError(t, err)
	assert.Equal(t, "USD", product.Locale.ISOCode)
}

func TestService_CommitManual_MissingParameters(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})
	location := &detect.Location{Selector: "span.price"}

	tests := []struct {
		name       string
		url        string
		product    string
		location   *detect.Location
		localeSpec string
	}{
		{"상품명 누락", "https://shop.example.com/m", "", location, "ko-KR"},
		{"가격 위치 누락", "https://shop.example.com/m", "상품", nil, "ko-KR"},
		{"빈 선택자", "https://shop.example.com/m", "상품", &detect.Location{}, "ko-KR"},
		{"로케일 누락", "https://shop.example.com/m", "상품", location, ""},
		{"알 수 없는 로케일", "https://shop.example.com/m", "상품", location, "xx-XX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := service.CommitManual(tt.url, tt.product, tt.location, tt.localeSpec, false)
			require.Error(t, err)
			assert.Equal(t, detect.ErrorKindMissingManualParameters, detect.KindOf(err))
		})
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})
	location := &detect.Location{Selector: "span.price"}

	_, err := service.CommitManual("https://shop.example.com/dup", "상품", location, "ko-KR", false)
	require.NoError(t, err)

	_, err = service.CommitManual("https://shop.example.com/dup", "상품", location, "ko-KR", false)
	require.Error(t, err)
}

// CheckNow는 복사본으로 갱신을 수행하므로 추적 상태를 변경하지 않는다.
func TestService_CheckNow_DoesNotMutate(t *testing.T) {
	t.Parallel()

	url := "https://shop.example.com/widget"
	loader := &fakeLoader{pages: map[string]*scraper.Page{
		url: pageFromHTML(t, `<html><body><span class="price">$14.99</span></body></html>`),
	}}
	service := newTestService(loader)

	product, err := service.CommitManual(url, "Blue Widget", &detect.Location{Selector: "span.price"}, "en-US", false)
	require.NoError(t, err)

	result, err := service.CheckNow(context.Background(), product.ID)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.ChangedPrice)
	assert.Equal(t, int64(1499), result.NewAmount)

	// 레지스트리의 상품은 그대로여야 한다. (수동 등록 직후 금액은 0)
	registered, err := service.Product(product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.SelectedAmount, registered.SelectedAmount)
	assert.Empty(t, registered.PriceHistory)
}

func TestService_Product_NotFound(t *testing.T) {
	t.Parallel()

	service := newTestService(&fakeLoader{})

	_, err := service.Product("missing")
	require.Error(t, err)

	_, err = service.CheckNow(context.Background(), "missing")
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	krw := &detect.LocaleDescriptor{CurrencySymbol: "₩", ISOCode: "KRW"}
	usd := &detect.LocaleDescriptor{CurrencySymbol: "$", ISOCode: "USD"}

	assert.Equal(t, "₩44900", formatAmount(4490000, krw))
	assert.Equal(t, "$19.99", formatAmount(1999, usd))
	assert.Equal(t, "$20", formatAmount(2000, usd))
	assert.Equal(t, "1999", formatAmount(199900, nil))
}

// 설정에만 정의된 상품이 있는 상태에서 서비스 전체 생애주기
// (기동 → 등록 → 첫 갱신 → 저장 → 종료)가 동작하는지 검증한다.
func TestService_StartLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	url := "https://shop.example.com/lifecycle"
	loader := &fakeLoader{pages: map[string]*scraper.Page{
		url: pageFromHTML(t, `<html>
			<body>
				<h1>Lifecycle Widget</h1>
				<span class="price">$12.99</span>
			</body>
		</html>`),
	}}

	store := &memStore{}
	appConfig := &config.AppConfig{
		Tracking: config.TrackingConfig{Interval: "1s", Jitter: "0s"},
		Products: []config.ProductConfig{{
			URL: url,
			Manual: &config.ManualProductConfig{
				Name:     "라이프사이클 상품",
				Selector: "span.price",
				Locale:   "en-US",
			},
		}},
	}

	service := NewService(appConfig, detect.NewDetector(detect.NewLocaleTable()), loader, store)
	service.SetNotificationSender(notification.NewLogSender())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	// 저장소에 없는 설정 상품을 복원하는 경로에서도 Start는 지체 없이 반환되어야 한다.
	started := make(chan error, 1)
	go func() { started <- service.Start(ctx, &wg) }()
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start()가 제한 시간 내에 반환되지 않았습니다")
	}

	products := service.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "라이프사이클 상품", products[0].DisplayName)

	// 첫 갱신 주기가 지나면 이벤트 펌프가 상태를 저장소에 반영해야 한다.
	assert.Eventually(t, func() bool {
		return store.saveCount() > 0
	}, 15*time.Second, 100*time.Millisecond)

	cancel()
	wg.Wait()

	stored, err := store.Load()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].LastChecked.IsZero())
	assert.Equal(t, int64(1299), stored[0].SelectedAmount)
}
