package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_AfterInit(t *testing.T) {
	// init()에서 enrich를 거친 전역 정보가 채워져 있어야 한다.
	got := Get()

	assert.NotEmpty(t, got.Version)
	assert.Equal(t, runtime.Version(), got.GoVersion)
	assert.Equal(t, runtime.GOOS, got.OS)
	assert.Equal(t, runtime.GOARCH, got.Arch)
}

func TestEnrich_RuntimeInfo(t *testing.T) {
	t.Parallel()

	got := enrich(Info{Version: "v1.0.0"})

	assert.Equal(t, "v1.0.0", got.Version)
	assert.Equal(t, runtime.Version(), got.GoVersion)
	assert.Equal(t, runtime.GOOS, got.OS)
	assert.Equal(t, runtime.GOARCH, got.Arch)
}

func TestEnrich_VCSMetadata(t *testing.T) {
	original := readBuildInfo
	defer func() { readBuildInfo = original }()

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "f25b8bfabcdef"},
				{Key: "vcs.time", Value: "2026-01-01T00:00:00Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}

	got := enrich(Info{})

	assert.Equal(t, "f25b8bfabcdef", got.Commit)
	assert.Equal(t, "2026-01-01T00:00:00Z", got.BuildDate)
	assert.True(t, got.DirtyBuild)
	// ldflags와 VCS 메타데이터 모두 없으면 unknown으로 수렴한다.
	assert.Equal(t, unknown, got.Version)
}

func TestInfo_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input Info
		want  string
	}{
		{
			name: "모든 필드 포함",
			input: Info{
				Version:     "v1.0.0",
				BuildDate:   "2025-01-01",
				BuildNumber: "1",
				GoVersion:   "go1.24",
				OS:          "linux",
				Arch:        "amd64",
			},
			want: "v1.0.0 (build: 1, date: 2025-01-01, go_version: go1.24, os: linux, arch: amd64)",
		},
		{
			name: "더티 빌드와 긴 커밋 해시",
			input: Info{
				Version:    "v1.0.0",
				Commit:     "f25b8bfabcdef",
				DirtyBuild: true,
			},
			want: "v1.0.0+dirty (commit: f25b8bf)",
		},
		{
			name:  "빈 정보",
			input: Info{},
			want:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.input.String())
		})
	}
}

func TestInfo_JSONMarshaling(t *testing.T) {
	t.Parallel()

	info := Info{
		Version:     "v1.0.0",
		BuildNumber: "123",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "v1.0.0", decoded["version"])
	assert.Equal(t, "123", decoded["build_number"])
}

// Get()은 여러 고루틴에서 동시에 호출해도 안전해야 한다.
func TestGet_ConcurrentAccess(t *testing.T) {
	const (
		goroutines = 50
		iterations = 1000
	)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				info := Get()
				_ = info.String()
			}
		}()
	}

	wg.Wait()
}
