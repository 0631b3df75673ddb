package fetcher

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

const (
	// maxAllowedRetries 허용 가능한 최대 재시도 횟수입니다.
	maxAllowedRetries = 10

	// defaultMinRetryDelay 지수 백오프의 시작 대기 시간 기본값입니다.
	defaultMinRetryDelay = 1 * time.Second

	// defaultMaxRetryDelay 지수 백오프 증가 시 대기 시간의 상한선 기본값입니다.
	defaultMaxRetryDelay = 30 * time.Second
)

// RetryFetcher HTTP 요청 실패 시 자동으로 재시도를 수행하는 미들웨어입니다.
//
// 주요 특징:
//   - 지수 백오프(Exponential Backoff): 재시도 간격을 2배씩 증가시켜 서버 부하를 분산
//   - Jitter: 무작위 지연을 추가하여 동시 다발적인 재시도(Thundering Herd) 방지
//   - 멱등성 보장: 비멱등 메서드(POST 등)는 재시도하지 않음
//   - 컨텍스트 취소 감지: 호출자의 취소 요청 시 즉시 재시도 중단
type RetryFetcher struct {
	delegate Fetcher

	maxRetries    int
	minRetryDelay time.Duration
	maxRetryDelay time.Duration
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher 새로운 RetryFetcher 인스턴스를 생성합니다.
// 범위를 벗어난 설정값은 허용 범위로 보정됩니다.
func NewRetryFetcher(delegate Fetcher, maxRetries int, minRetryDelay, maxRetryDelay time.Duration) *RetryFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > maxAllowedRetries {
		maxRetries = maxAllowedRetries
	}
	if minRetryDelay <= 0 {
		minRetryDelay = defaultMinRetryDelay
	}
	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = defaultMaxRetryDelay
		if maxRetryDelay < minRetryDelay {
			maxRetryDelay = minRetryDelay
		}
	}

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Do HTTP 요청을 수행하며, 실패 시 설정된 정책에 따라 자동으로 재시도합니다.
func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	effectiveMaxRetries := f.maxRetries

	// 비멱등 메서드는 재시도 시 데이터 중복 생성/수정 위험이 있으므로 재시도를 비활성화합니다.
	if !isIdempotentMethod(req.Method) {
		effectiveMaxRetries = 0
	}

	// 재시도 시 요청 본문을 다시 읽어야 하므로, GetBody가 없으면 재시도를 포기합니다.
	if req.Body != nil && req.GetBody == nil {
		effectiveMaxRetries = 0
	}

	var lastErr error

	for i := 0; i <= effectiveMaxRetries; i++ {
		if i > 0 {
			// 지수 백오프 계산: minRetryDelay * 2^(i-1), 상한선 적용
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}

			// Jitter: 0 ~ delay 사이의 무작위 값을 선택하되, 최소 대기 시간은 보장합니다.
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
				if delay < f.minRetryDelay {
					delay = f.minRetryDelay
				}
			}

			applog.WithComponentAndFields(component, applog.Fields{
				"url":     req.URL.Redacted(),
				"attempt": i,
				"delay":   delay.String(),
				"error":   lastErr,
			}).Debug("HTTP 요청 재시도 대기")

			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
		}

		// 재시도를 위해 요청 본문을 재구성합니다.
		if i > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := f.delegate.Do(req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// 컨텍스트 취소/타임아웃은 호출자의 의도이므로 재시도하지 않습니다.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		// 재시도 가능한 에러가 아니면 즉시 반환합니다.
		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// isIdempotentMethod HTTP 메서드가 멱등한지 여부를 반환합니다. (RFC 9110)
func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete, http.MethodPut, http.MethodTrace:
		return true
	default:
		return false
	}
}

// isRetryableError 재시도로 복구될 가능성이 있는 에러인지 판별합니다.
//
// 네트워크 수준의 일시적 오류(타임아웃, 연결 재설정 등)와
// 일시적 서버 장애(HTTPStatusError의 5xx, 408, 429)가 재시도 대상입니다.
func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	// url.Error 등으로 감싸인 연결 오류도 일시적일 수 있으므로 재시도를 허용합니다.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
