package fetcher

import (
	"fmt"
	"net/http"
)

// HTTPStatusError 2xx 범위를 벗어난 HTTP 상태 코드를 에러로 표현하는 타입입니다.
//
// StatusCheckFetcher가 생성하며, 상위 계층(RetryFetcher)은 이 타입을 검사하여
// 재시도 가능 여부를 판별합니다.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Header     http.Header
}

// Error 표준 errors.Error 인터페이스를 구현합니다.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP 요청 실패 (URL: %s, Status: %d)", e.URL, e.StatusCode)
}

// Retryable 해당 상태 코드가 재시도로 복구될 가능성이 있는지 여부를 반환합니다.
//
// 5xx 서버 에러와 408(Request Timeout), 429(Too Many Requests)는 일시적일 수 있으므로
// 재시도 대상이며, 그 외 4xx 클라이언트 에러는 재시도해도 결과가 달라지지 않습니다.
func (e *HTTPStatusError) Retryable() bool {
	if e.StatusCode >= 500 {
		return true
	}
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

// StatusCheckFetcher 2xx 범위를 벗어난 응답을 HTTPStatusError로 변환하는 미들웨어입니다.
//
// 이 미들웨어를 RetryFetcher의 하위(델리게이트 방향)에 배치하면
// 일시적 서버 장애(5xx 등)에 대한 자동 재시도가 활성화됩니다.
type StatusCheckFetcher struct {
	delegate Fetcher
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*StatusCheckFetcher)(nil)

// NewStatusCheckFetcher 새로운 StatusCheckFetcher 인스턴스를 생성합니다.
func NewStatusCheckFetcher(delegate Fetcher) *StatusCheckFetcher {
	return &StatusCheckFetcher{delegate: delegate}
}

// Do HTTP 요청을 수행하고, 상태 코드가 2xx 범위를 벗어나면 에러를 반환합니다.
// 에러 반환 시 커넥션 재사용을 위해 응답 본문을 비우고 닫습니다.
func (f *StatusCheckFetcher) Do(req *http.Request) (*http.Response, error) {
	resp, err := f.delegate.Do(req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL.Redacted(),
			Header:     resp.Header.Clone(),
		}
		drainAndCloseBody(resp.Body)

		return nil, statusErr
	}

	return resp, nil
}
