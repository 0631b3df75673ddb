package fetcher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// defaultMaxBytes 응답 본문의 기본 크기 제한값입니다 (10MB).
	// 상품 페이지 HTML은 수백 KB 수준이므로 이 값을 넘는 응답은 비정상으로 간주합니다.
	defaultMaxBytes = 10 * 1024 * 1024

	// NoLimit 응답 본문에 대한 크기 제한을 적용하지 않음을 나타내는 특수 상수입니다.
	NoLimit = -1
)

// BodyTooLargeError 응답 본문이 허용된 크기 제한을 초과했음을 나타내는 에러 타입입니다.
type BodyTooLargeError struct {
	// ContentLength 응답 헤더가 선언한 본문 크기입니다. 헤더 기반으로 차단된 경우에만 설정됩니다.
	ContentLength int64

	// Limit 허용된 최대 바이트 수입니다.
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	if e.ContentLength > 0 {
		return fmt.Sprintf("응답 본문의 크기(%d바이트)가 허용된 최대 크기(%d바이트)를 초과하였습니다", e.ContentLength, e.Limit)
	}
	return fmt.Sprintf("응답 본문의 크기가 허용된 최대 크기(%d바이트)를 초과하였습니다", e.Limit)
}

// maxBytesReader http.MaxBytesReader가 반환하는 에러를 BodyTooLargeError로 변환하는 내부 헬퍼입니다.
type maxBytesReader struct {
	rc io.ReadCloser

	limit int64
}

func (r *maxBytesReader) Read(p []byte) (n int, err error) {
	n, err = r.rc.Read(p)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return n, &BodyTooLargeError{Limit: r.limit}
		}
	}

	return n, err
}

func (r *maxBytesReader) Close() error {
	return r.rc.Close()
}

// MaxBytesFetcher HTTP 응답 본문의 크기를 제한하는 미들웨어입니다.
//
// Content-Length 헤더 기반으로 조기 차단하고, 헤더가 없거나 조작된 응답은
// 실제 읽기 시점의 바이트 수 제한으로 2차 방어합니다.
type MaxBytesFetcher struct {
	delegate Fetcher

	// 응답 본문의 최대 허용 바이트 수
	limit int64
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*MaxBytesFetcher)(nil)

// NewMaxBytesFetcher 새로운 MaxBytesFetcher 인스턴스를 생성합니다.
// limit이 NoLimit이면 크기 제한 없이 delegate를 그대로 반환합니다.
func NewMaxBytesFetcher(delegate Fetcher, limit int64) Fetcher {
	if limit == NoLimit {
		return delegate
	}
	if limit <= 0 {
		limit = defaultMaxBytes
	}

	return &MaxBytesFetcher{
		delegate: delegate,
		limit:    limit,
	}
}

// Do HTTP 요청을 수행하고, 응답 본문에 크기 제한을 적용합니다.
//
// 주의사항:
//   - 반환된 응답의 Body는 반드시 호출자가 닫아야 합니다.
//   - Body를 읽는 도중 제한 초과 시 에러가 발생할 수 있습니다.
func (f *MaxBytesFetcher) Do(req *http.Request) (*http.Response, error) {
	resp, err := f.delegate.Do(req)
	if err != nil {
		if resp != nil {
			// 커넥션 재사용을 위해 응답 객체의 Body를 안전하게 비우고 닫음
			drainAndCloseBody(resp.Body)
		}

		return nil, err
	}

	// 1차 방어: Content-Length 헤더 기반 조기 차단
	if resp.ContentLength > f.limit {
		drainAndCloseBody(resp.Body)

		return nil, &BodyTooLargeError{ContentLength: resp.ContentLength, Limit: f.limit}
	}

	// 2차 방어: 실제 읽기 시점의 바이트 수 제한
	// http.MaxBytesReader는 Content-Length 헤더를 신뢰하지 않으므로
	// 헤더가 없거나 실제보다 작게 조작된 응답도 차단됩니다.
	resp.Body = &maxBytesReader{
		rc:    http.MaxBytesReader(nil, resp.Body, f.limit),
		limit: f.limit,
	}

	return resp, nil
}
