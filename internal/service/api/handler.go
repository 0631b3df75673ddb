package api

import (
	"net/http"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/tracker"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	"github.com/labstack/echo/v4"
)

// componentErrorHandler 전역 에러 핸들러의 로깅용 컴포넌트 이름
const componentErrorHandler = "api.error_handler"

// ErrorResponse 모든 에러 응답의 표준 JSON 형식입니다.
type ErrorResponse struct {
	ResultCode int    `json:"result_code"`
	Message    string `json:"message"`
}

// newHTTPError 표준 ErrorResponse를 본문으로 하는 echo.HTTPError를 생성합니다.
func newHTTPError(code int, message string) error {
	return echo.NewHTTPError(code, ErrorResponse{
		ResultCode: code,
		Message:    message,
	})
}

// errorHandler Echo 프레임워크의 전역 에러 핸들러입니다.
//
// 모든 HTTP 에러를 가로채서 표준 ErrorResponse JSON 형식으로 변환하여 반환하고,
// 상태 코드에 따라 적절한 레벨로 로그를 남깁니다.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "서버 내부 오류가 발생하였습니다."

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else if resp, ok := he.Message.(ErrorResponse); ok {
			message = resp.Message
		}
	}

	if code == http.StatusNotFound && message == http.StatusText(http.StatusNotFound) {
		message = "요청하신 리소스를 찾을 수 없습니다."
	}

	fields := applog.Fields{
		"path":        c.Request().URL.Path,
		"method":      c.Request().Method,
		"status_code": code,
		"error":       err,
		"remote_ip":   c.RealIP(),
		"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
	}

	if code >= http.StatusInternalServerError {
		applog.WithComponentAndFields(componentErrorHandler, fields).Error("HTTP 5xx 서버 오류")
	} else if code >= http.StatusBadRequest {
		applog.WithComponentAndFields(componentErrorHandler, fields).Warn("HTTP 4xx 클라이언트 오류")
	}

	// 이미 응답이 전송된 경우 추가 응답을 시도하지 않습니다.
	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	_ = c.JSON(code, ErrorResponse{
		ResultCode: code,
		Message:    message,
	})
}

// productSummary 상품 목록 응답 항목입니다.
type productSummary struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	AutoDetect  bool      `json:"auto_detect"`
	LastChecked time.Time `json:"last_checked"`
}

// productDetail 상품 상세 응답입니다. 변동 이력을 포함합니다.
type productDetail struct {
	productSummary

	NameUpdatedAt  time.Time                    `json:"name_updated_at"`
	PriceUpdatedAt time.Time                    `json:"price_updated_at"`
	NameHistory    []tracker.NameHistoryEntry   `json:"name_history"`
	PriceHistory   []tracker.PriceHistoryEntry  `json:"price_history"`
}

// checkResult 즉시 확인 응답입니다.
type checkResult struct {
	ProductID string    `json:"product_id"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind"`
	Amount    int64     `json:"amount,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Handler 운영 조회 API의 핸들러 집합입니다.
type Handler struct {
	tracker *tracker.Service

	startedAt time.Time
}

// NewHandler 핸들러를 생성합니다.
func NewHandler(trackerService *tracker.Service) *Handler {
	return &Handler{
		tracker:   trackerService,
		startedAt: time.Now(),
	}
}

// SetupRoutes 모든 API 라우트를 등록합니다.
func SetupRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.health)
	e.HEAD("/health", h.health)

	v1 := e.Group("/api/v1")
	v1.GET("/products", h.listProducts)
	v1.GET("/products/:id", h.productDetail)
	v1.POST("/products/:id/check", h.checkNow)
}

// health 서비스 가동 상태를 반환합니다.
func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// listProducts 추적 중인 모든 상품의 요약 목록을 반환합니다.
func (h *Handler) listProducts(c echo.Context) error {
	products := h.tracker.Products()

	summaries := make([]productSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, newProductSummary(p))
	}

	return c.JSON(http.StatusOK, summaries)
}

// productDetail 상품 상세와 변동 이력을 반환합니다.
func (h *Handler) productDetail(c echo.Context) error {
	product, err := h.tracker.Product(c.Param("id"))
	if err != nil {
		return newHTTPError(http.StatusNotFound, "추적 중인 상품을 찾을 수 없습니다.")
	}

	return c.JSON(http.StatusOK, productDetail{
		productSummary: newProductSummary(product),
		NameUpdatedAt:  product.NameUpdatedAt,
		PriceUpdatedAt: product.PriceUpdatedAt,
		NameHistory:    product.NameHistory,
		PriceHistory:   product.PriceHistory,
	})
}

// checkNow 상품의 현재 가격을 즉시 확인합니다. 추적 상태는 변경되지 않습니다.
func (h *Handler) checkNow(c echo.Context) error {
	result, err := h.tracker.CheckNow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return newHTTPError(http.StatusNotFound, "추적 중인 상품을 찾을 수 없습니다.")
	}

	resp := checkResult{
		ProductID: result.ProductID,
		Success:   result.Success,
		ErrorKind: result.ErrorKind.String(),
		CheckedAt: result.CheckedAt,
	}
	if result.Success {
		if result.ChangedPrice {
			resp.Amount = result.NewAmount
		} else if product, err := h.tracker.Product(result.ProductID); err == nil {
			resp.Amount = product.SelectedAmount
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func newProductSummary(p *tracker.TrackedProduct) productSummary {
	currency := ""
	if p.Locale != nil {
		currency = p.Locale.ISOCode
	}

	return productSummary{
		ID:          p.ID,
		URL:         p.URL,
		Name:        p.DisplayName,
		Amount:      p.SelectedAmount,
		Currency:    currency,
		AutoDetect:  p.AutoDetect,
		LastChecked: p.LastChecked,
	}
}
