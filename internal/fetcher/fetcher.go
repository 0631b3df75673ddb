// Package fetcher HTTP 요청을 수행하는 클라이언트 계층을 제공합니다.
//
// Fetcher 인터페이스를 중심으로 재시도, User-Agent 주입, 응답 크기 제한,
// 호스트별 요청 속도 제한 등의 기능을 데코레이터 패턴으로 조합할 수 있습니다.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// component Fetcher 계층의 로깅용 컴포넌트 이름
const component = "fetcher"

// maxDrainBytes 커넥션 재사용을 위해 응답 본문을 비울 때 읽을 최대 바이트 수 (64KB)
// 너무 큰 응답을 끝까지 읽으면 성능 저하를 유발하므로 일정량만 읽고 닫습니다.
const maxDrainBytes = 64 * 1024

// Fetcher HTTP 요청을 수행하는 핵심 인터페이스입니다.
//
// 구현 시 주의사항:
//   - 반환된 응답 객체의 Body는 반드시 호출자가 닫아야 합니다.
//   - Context 취소 시 즉시 요청을 중단하고 적절한 에러를 반환해야 합니다.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Get 지정된 URL로 HTTP GET 요청을 전송하는 헬퍼 함수입니다.
//
// 요청 실패 시 커넥션 재사용을 위해 응답 본문을 자동으로 비우고 닫습니다.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Do(req)
	if err != nil {
		if resp != nil {
			drainAndCloseBody(resp.Body)
		}
		return nil, err
	}

	return resp, nil
}

// drainBufPool drainAndCloseBody에서 재사용하는 바이트 버퍼 풀입니다.
// 매번 새로운 버퍼를 할당하면 GC 부담이 증가하므로 sync.Pool로 재사용합니다.
var drainBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

// drainAndCloseBody HTTP 커넥션 재사용을 위해 응답 본문을 안전하게 비우고 닫습니다.
//
// Keep-Alive 커넥션 풀링을 위해서는 응답 본문을 완전히 읽어야 하지만,
// 거대한 응답으로 인한 메모리 고갈을 방지하기 위해 maxDrainBytes까지만 읽습니다.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}

	buf := drainBufPool.Get().(*[]byte)
	defer drainBufPool.Put(buf)

	_, _ = io.CopyBuffer(io.Discard, io.LimitReader(body, maxDrainBytes), *buf)
	_ = body.Close()
}
