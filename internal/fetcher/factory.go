package fetcher

import (
	"time"
)

// Config Fetcher 체인을 구성하기 위한 설정 옵션을 정의하는 구조체입니다.
type Config struct {
	// Timeout HTTP 요청 전체에 대한 타임아웃입니다.
	// 0 이하이면 기본값(defaultTimeout)이 적용됩니다.
	Timeout time.Duration

	// MaxRetries 최대 재시도 횟수입니다.
	// 0이면 재시도하지 않으며, 최대값(maxAllowedRetries)을 초과하면 보정됩니다.
	MaxRetries int

	// MinRetryDelay 재시도 대기 시간의 최소값입니다. 1초 미만은 1초로 보정됩니다.
	MinRetryDelay time.Duration

	// MaxRetryDelay 재시도 대기 시간의 최대값입니다.
	// MinRetryDelay보다 작으면 MinRetryDelay로 보정됩니다.
	MaxRetryDelay time.Duration

	// MaxBytes HTTP 응답 본문의 최대 허용 크기입니다. (단위: 바이트)
	// NoLimit(-1)이면 제한하지 않으며, 0 이하는 기본값으로 보정됩니다.
	MaxBytes int64

	// RequestsPerSecond 호스트별 초당 최대 요청 수입니다. 0 이하는 기본값으로 보정됩니다.
	RequestsPerSecond float64

	// Burst 호스트별 버스트 허용량입니다. 0 이하는 기본값으로 보정됩니다.
	Burst int

	// EnableUserAgentRandomization 요청마다 User-Agent를 랜덤으로 변경할지 여부입니다.
	EnableUserAgentRandomization bool

	// UserAgents User-Agent 랜덤 주입 시 사용할 목록입니다.
	// 비어있으면 내장 목록(defaultUserAgents)에서 선택합니다.
	UserAgents []string
}

// NewFromConfig 설정값을 기반으로 Fetcher 실행 체인을 생성합니다.
//
// 체인은 책임 연쇄 패턴을 따르며, 바깥쪽에서 안쪽으로 다음 순서로 구성됩니다.
//
//  1. UserAgentFetcher  : 각 요청에 User-Agent를 부여합니다. (옵션)
//  2. RateLimitFetcher  : 호스트별 요청 속도를 제한합니다.
//  3. RetryFetcher      : 실패 시 지수 백오프 전략에 따라 재시도합니다.
//  4. StatusCheckFetcher: HTTP 응답 상태 코드를 검증합니다.
//  5. MaxBytesFetcher   : 응답 본문의 크기를 제한합니다.
//  6. HTTPFetcher       : 실제 네트워크 I/O를 담당합니다.
//
// 상태 코드 검증은 각 시도마다 수행되어야 하므로 RetryFetcher 안쪽에,
// 속도 제한은 재시도 요청에도 적용되어야 하므로 RetryFetcher 바깥쪽에 위치합니다.
func NewFromConfig(cfg Config) Fetcher {
	var f Fetcher = NewHTTPFetcherWithTimeout(cfg.Timeout)

	f = NewMaxBytesFetcher(f, cfg.MaxBytes)
	f = NewStatusCheckFetcher(f)
	f = NewRetryFetcher(f, cfg.MaxRetries, cfg.MinRetryDelay, cfg.MaxRetryDelay)
	f = NewRateLimitFetcher(f, cfg.RequestsPerSecond, cfg.Burst)

	if cfg.EnableUserAgentRandomization {
		f = NewUserAgentFetcher(f, cfg.UserAgents)
	}

	return f
}
