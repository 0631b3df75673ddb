package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/pricewatch-server/internal/config"
	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
	"github.com/darkkaiser/pricewatch-server/internal/tracker"
)

// stubLoader URL마다 준비된 HTML을 반환하는 테스트용 Loader입니다.
type stubLoader struct {
	pages map[string]string
}

var _ scraper.Loader = (*stubLoader)(nil)

func (l *stubLoader) Load(_ context.Context, urlStr string) (*scraper.Page, error) {
	htmlText, exists := l.pages[urlStr]
	if !exists {
		return nil, echo.ErrNotFound
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	return &scraper.Page{Document: doc, StatusCode: 200}, nil
}

// stubStore 아무것도 저장하지 않는 테스트용 Store입니다.
type stubStore struct{}

var _ tracker.Store = (*stubStore)(nil)

func (s *stubStore) Load() ([]*tracker.TrackedProduct, error)  { return nil, nil }
func (s *stubStore) Save([]*tracker.TrackedProduct) error      { return nil }

func newTestEcho(t *testing.T, loader scraper.Loader) (*echo.Echo, *tracker.Service) {
	t.Helper()

	appConfig := &config.AppConfig{
		Tracking: config.TrackingConfig{Interval: "10m", Jitter: "1m"},
	}
	trackerService := tracker.NewService(
		appConfig,
		detect.NewDetector(detect.NewLocaleTable()),
		loader,
		&stubStore{},
	)

	e := echo.New()
	e.HTTPErrorHandler = errorHandler
	SetupRoutes(e, NewHandler(trackerService))

	return e, trackerService
}

func registerTestProduct(t *testing.T, trackerService *tracker.Service, url string) *tracker.TrackedProduct {
	t.Helper()

	product, err := trackerService.CommitManual(
		url,
		"무선 키보드",
		&detect.Location{Selector: "span.price"},
		"en-US",
		false,
	)
	require.NoError(t, err)
	return product
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, &stubLoader{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestHandler_ListProducts(t *testing.T) {
	t.Parallel()

	e, trackerService := newTestEcho(t, &stubLoader{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	product := registerTestProduct(t, trackerService, "https://shop.example.com/p/1")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []productSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, product.ID, summaries[0].ID)
	assert.Equal(t, "무선 키보드", summaries[0].Name)
	assert.Equal(t, "USD", summaries[0].Currency)
}

func TestHandler_ProductDetail(t *testing.T) {
	t.Parallel()

	e, trackerService := newTestEcho(t, &stubLoader{})
	product := registerTestProduct(t, trackerService, "https://shop.example.com/p/1")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+product.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		productSummary
		NameHistory  []tracker.NameHistoryEntry  `json:"name_history"`
		PriceHistory []tracker.PriceHistoryEntry `json:"price_history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, product.ID, detail.ID)
	assert.Equal(t, product.URL, detail.URL)
	assert.Empty(t, detail.PriceHistory)
}

func TestHandler_ProductDetail_NotFound(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, &stubLoader{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.ResultCode)
	assert.NotEmpty(t, resp.Message)
}

func TestHandler_CheckNow(t *testing.T) {
	t.Parallel()

	url := "https://shop.example.com/p/1"
	loader := &stubLoader{pages: map[string]string{
		url: `<html><body><span class="price">$14.99</span></body></html>`,
	}}
	e, trackerService := newTestEcho(t, loader)
	product := registerTestProduct(t, trackerService, url)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/"+product.ID+"/check", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result checkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, product.ID, result.ProductID)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1499), result.Amount)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestHandler_CheckNow_FetchFailure(t *testing.T) {
	t.Parallel()

	// 페이지를 가져올 수 없어도 확인 요청 자체는 성공하며, 실패 종류가 보고된다.
	e, trackerService := newTestEcho(t, &stubLoader{})
	product := registerTestProduct(t, trackerService, "https://shop.example.com/p/1")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/"+product.ID+"/check", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result checkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "fetch_failed", result.ErrorKind)
}

func TestHandler_CheckNow_NotFound(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, &stubLoader{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/missing/check", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
