package fetcher_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/pricewatch-server/internal/fetcher"
)

// fetcherFunc 테스트용 Fetcher 스텁입니다.
type fetcherFunc func(req *http.Request) (*http.Response, error)

func (f fetcherFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := fetcher.Get(context.Background(), fetcher.NewHTTPFetcher(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestStatusCheckFetcher_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantErr   bool
		retryable bool
	}{
		{name: "200 OK", status: http.StatusOK, wantErr: false},
		{name: "404 Not Found", status: http.StatusNotFound, wantErr: true, retryable: false},
		{name: "429 Too Many Requests", status: http.StatusTooManyRequests, wantErr: true, retryable: true},
		{name: "500 Internal Server Error", status: http.StatusInternalServerError, wantErr: true, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := fetcher.NewStatusCheckFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
				return newResponse(tt.status, "body"), nil
			}))

			req, err := http.NewRequest(http.MethodGet, "http://example.com/product", nil)
			require.NoError(t, err)

			resp, err := f.Do(req)
			if !tt.wantErr {
				require.NoError(t, err)
				resp.Body.Close()
				return
			}

			require.Error(t, err)

			var statusErr *fetcher.HTTPStatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.retryable, statusErr.Retryable())
		})
	}
}

func TestMaxBytesFetcher_Do(t *testing.T) {
	t.Parallel()

	t.Run("Content-Length 기반 조기 차단", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewMaxBytesFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			return newResponse(http.StatusOK, strings.Repeat("a", 100)), nil
		}), 10)

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		_, err = f.Do(req)

		var tooLargeErr *fetcher.BodyTooLargeError
		require.ErrorAs(t, err, &tooLargeErr)
		assert.Equal(t, int64(100), tooLargeErr.ContentLength)
	})

	t.Run("읽기 시점 바이트 수 제한", func(t *testing.T) {
		t.Parallel()

		// Content-Length를 숨긴 응답은 실제 읽기 시점에 차단되어야 한다.
		f := fetcher.NewMaxBytesFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			resp := newResponse(http.StatusOK, strings.Repeat("a", 100))
			resp.ContentLength = -1
			return resp, nil
		}), 10)

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		resp, err := f.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		_, err = io.ReadAll(resp.Body)

		var tooLargeErr *fetcher.BodyTooLargeError
		require.ErrorAs(t, err, &tooLargeErr)
	})

	t.Run("NoLimit은 제한 없이 통과", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewMaxBytesFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			return newResponse(http.StatusOK, strings.Repeat("a", 100)), nil
		}), fetcher.NoLimit)

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		resp, err := f.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})
}

func TestRetryFetcher_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		status        int
		expectedCalls int32
	}{
		{name: "200 재시도 안 함", method: http.MethodGet, status: http.StatusOK, expectedCalls: 1},
		{name: "404 재시도 안 함", method: http.MethodGet, status: http.StatusNotFound, expectedCalls: 1},
		{name: "500 재시도", method: http.MethodGet, status: http.StatusInternalServerError, expectedCalls: 4},
		{name: "429 재시도", method: http.MethodGet, status: http.StatusTooManyRequests, expectedCalls: 4},
		{name: "비멱등 메서드는 재시도 안 함", method: http.MethodPost, status: http.StatusInternalServerError, expectedCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			delegate := fetcher.NewStatusCheckFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
				calls.Add(1)
				return newResponse(tt.status, "body"), nil
			}))

			f := fetcher.NewRetryFetcher(delegate, 3, time.Millisecond, 10*time.Millisecond)

			req, err := http.NewRequest(tt.method, "http://example.com", nil)
			require.NoError(t, err)

			resp, err := f.Do(req)
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				resp.Body.Close()
			} else {
				require.Error(t, err)
			}

			assert.Equal(t, tt.expectedCalls, calls.Load())
		})
	}

	t.Run("컨텍스트 취소 시 즉시 중단", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		f := fetcher.NewRetryFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, req.Context().Err()
		}), 3, time.Millisecond, 10*time.Millisecond)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		_, err = f.Do(req)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestUserAgentFetcher_Do(t *testing.T) {
	t.Parallel()

	t.Run("User-Agent가 없으면 주입", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewUserAgentFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "pricewatch-test/1.0", req.Header.Get("User-Agent"))
			return newResponse(http.StatusOK, ""), nil
		}), []string{"pricewatch-test/1.0"})

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		resp, err := f.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	})

	t.Run("이미 설정된 User-Agent는 유지", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewUserAgentFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "custom/1.0", req.Header.Get("User-Agent"))
			return newResponse(http.StatusOK, ""), nil
		}), []string{"pricewatch-test/1.0"})

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "custom/1.0")

		resp, err := f.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	})
}

func TestRateLimitFetcher_Do(t *testing.T) {
	t.Parallel()

	t.Run("버스트 범위 내 요청은 즉시 통과", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewRateLimitFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			return newResponse(http.StatusOK, ""), nil
		}), 100, 1)

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		start := time.Now()
		resp, err := f.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("대기 중 컨텍스트 취소 시 에러 반환", func(t *testing.T) {
		t.Parallel()

		f := fetcher.NewRateLimitFetcher(fetcherFunc(func(req *http.Request) (*http.Response, error) {
			return newResponse(http.StatusOK, ""), nil
		}), 0.001, 1)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		// 첫 요청으로 토큰을 소진시킨다.
		req1, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com/a", nil)
		require.NoError(t, err)
		resp, err := f.Do(req1)
		require.NoError(t, err)
		resp.Body.Close()

		req2, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com/b", nil)
		require.NoError(t, err)
		_, err = f.Do(req2)
		require.Error(t, err)
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := fetcher.NewFromConfig(fetcher.Config{
		MaxRetries:        2,
		MinRetryDelay:     time.Millisecond,
		MaxRetryDelay:     10 * time.Millisecond,
		RequestsPerSecond: 100,
		Burst:             10,
	})

	resp, err := fetcher.Get(context.Background(), f, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPStatusError_Error(t *testing.T) {
	t.Parallel()

	err := &fetcher.HTTPStatusError{StatusCode: http.StatusNotFound, URL: "http://example.com/p"}
	assert.Contains(t, err.Error(), "404")

	var target *fetcher.HTTPStatusError
	assert.True(t, errors.As(err, &target))
}
