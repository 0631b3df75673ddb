package fetcher

import (
	"net"
	"net/http"
	"time"
)

const (
	// defaultClientTimeout 요청 전체(연결, 전송, 응답 수신)에 적용되는 기본 타임아웃입니다.
	defaultClientTimeout = 30 * time.Second

	// defaultMaxIdleConns 커넥션 풀에 유지할 유휴 연결의 최대 개수입니다.
	defaultMaxIdleConns = 100
)

// defaultTransport 모든 기본 HTTPFetcher가 공유하는 전역 Transport입니다.
// 연결 풀을 공유하여 TCP/TLS 핸드셰이크 비용을 최소화합니다.
var defaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,

	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,

	TLSHandshakeTimeout: 10 * time.Second,

	MaxIdleConns:        defaultMaxIdleConns,
	MaxIdleConnsPerHost: defaultMaxIdleConns,
	IdleConnTimeout:     90 * time.Second,
}

// HTTPFetcher 표준 http.Client를 감싼 Fetcher 구현체입니다.
// 데코레이터 체인의 가장 안쪽(실제 네트워크 요청)을 담당합니다.
type HTTPFetcher struct {
	client *http.Client
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher 기본 타임아웃 설정이 포함된 새로운 HTTPFetcher 인스턴스를 생성합니다.
func NewHTTPFetcher() *HTTPFetcher {
	return NewHTTPFetcherWithTimeout(defaultClientTimeout)
}

// NewHTTPFetcherWithTimeout 지정된 타임아웃을 적용한 HTTPFetcher 인스턴스를 생성합니다.
// timeout이 0 이하인 경우 기본값으로 보정됩니다.
func NewHTTPFetcherWithTimeout(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: defaultTransport,
			Timeout:   timeout,
		},
	}
}

// Do HTTP 요청을 실행합니다.
func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}
