package log

import (
	"fmt"
	"os"
)

// Options 로거 설정을 위한 구조체입니다.
type Options struct {
	Name  string // 로그 파일명 생성에 사용될 애플리케이션 식별자
	Dir   string // 로그 파일이 저장될 디렉토리 경로 (빈 문자열: "logs")
	Level Level  // 로그 레벨 (0: InfoLevel)

	MaxAgeDays int // 로테이션 된 로그 파일의 보관 기준일 (0: 삭제 안 함)
	MaxSizeMB  int // 로그 파일 하나당 최대 크기 (0: 기본값 사용)
	MaxBackups int // 로테이션 된 로그 파일의 최대 보관 개수 (0: 기본값 사용)

	EnableConsoleLog bool // 표준 출력(Stdout)에도 로그를 출력할지 여부 (개발 환경 권장)
	ReportCaller     bool // 로그를 호출한 소스 코드의 위치를 함께 기록할지 여부
}

// Validate Options 구조체의 필드 값이 유효한지 검증합니다.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("애플리케이션 식별자(Name)가 설정되지 않았습니다")
	}

	// Dir이 이미 일반 파일로 존재하면 디렉토리 생성이 불가능합니다.
	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("로그 디렉토리 경로(%s)가 이미 파일로 존재합니다", opts.Dir)
		}
	}

	if opts.MaxAgeDays < 0 {
		return fmt.Errorf("MaxAgeDays는 0 이상이어야 합니다: %d", opts.MaxAgeDays)
	}
	if opts.MaxSizeMB < 0 {
		return fmt.Errorf("MaxSizeMB는 0 이상이어야 합니다: %d", opts.MaxSizeMB)
	}
	if opts.MaxBackups < 0 {
		return fmt.Errorf("MaxBackups는 0 이상이어야 합니다: %d", opts.MaxBackups)
	}

	return nil
}

// NewDevelopmentConfig 개발 환경에 적합한 기본 옵션을 반환합니다.
// 콘솔 출력과 호출자 정보 기록을 활성화하고, Trace 레벨까지 모두 기록합니다.
func NewDevelopmentConfig(appName string) Options {
	return Options{
		Name:             appName,
		Level:            TraceLevel,
		EnableConsoleLog: true,
		ReportCaller:     true,
	}
}

// NewProductionConfig 운영 환경에 적합한 기본 옵션을 반환합니다.
func NewProductionConfig(appName string) Options {
	return Options{
		Name:       appName,
		Level:      InfoLevel,
		MaxAgeDays: 30,
	}
}
