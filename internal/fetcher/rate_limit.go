package fetcher

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// defaultRequestsPerSecond 호스트별 기본 요청 속도입니다.
	defaultRequestsPerSecond = 2

	// defaultBurst 호스트별 기본 버스트 허용량입니다.
	defaultBurst = 1
)

// RateLimitFetcher 호스트별로 요청 속도를 제한하는 미들웨어입니다.
//
// 동일한 쇼핑몰에 등록된 여러 상품을 추적할 때 해당 호스트에 과도한 요청이
// 몰리지 않도록 호스트 단위로 토큰 버킷을 유지합니다. 제한에 걸리면
// 요청 컨텍스트가 취소될 때까지 대기합니다.
type RateLimitFetcher struct {
	delegate Fetcher

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*RateLimitFetcher)(nil)

// NewRateLimitFetcher 새로운 RateLimitFetcher 인스턴스를 생성합니다.
// requestsPerSecond 또는 burst가 0 이하이면 기본값이 적용됩니다.
func NewRateLimitFetcher(delegate Fetcher, requestsPerSecond float64, burst int) *RateLimitFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}

	return &RateLimitFetcher{
		delegate: delegate,
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Do 호스트별 속도 제한을 통과할 때까지 대기한 후 HTTP 요청을 수행합니다.
// 대기 중 요청 컨텍스트가 취소되면 즉시 에러를 반환합니다.
func (f *RateLimitFetcher) Do(req *http.Request) (*http.Response, error) {
	if err := f.limiterFor(req.URL.Hostname()).Wait(req.Context()); err != nil {
		return nil, err
	}

	return f.delegate.Do(req)
}

func (f *RateLimitFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	limiter, exists := f.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(f.limit, f.burst)
		f.limiters[host] = limiter
	}

	return limiter
}
