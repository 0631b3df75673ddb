// Package log logrus 기반의 전역 로깅 시스템을 제공합니다.
//
// 모든 로그는 component 필드를 통해 발생 위치(서비스/컴포넌트)를 식별하며,
// lumberjack을 이용한 파일 로테이션을 지원합니다.
package log

import (
	log "github.com/sirupsen/logrus"
)

// SetDebugMode 디버그 모드 여부에 따라 전역 로그 레벨을 조정합니다.
// 디버그 모드에서는 Trace 레벨까지 모두 기록합니다.
func SetDebugMode(debug bool) {
	if debug {
		log.SetLevel(log.TraceLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// WithComponent component 필드를 포함한 로그 Entry를 반환합니다.
// 모든 로그에 component 필드를 일관되게 추가하기 위해 사용합니다.
func WithComponent(component string) *log.Entry {
	return log.WithFields(log.Fields{
		"component": component,
	})
}

// WithComponentAndFields component 필드와 추가 필드를 포함한 로그 Entry를 반환합니다.
func WithComponentAndFields(component string, fields log.Fields) *log.Entry {
	newFields := make(log.Fields, len(fields)+1)
	for k, v := range fields {
		newFields[k] = v
	}
	newFields["component"] = component
	return log.WithFields(newFields)
}

// StandardLogger 전역 logrus 로거를 반환합니다.
// 자체 로거 인터페이스를 요구하는 서드파티 라이브러리(cron 등)에 어댑터로 전달합니다.
func StandardLogger() *log.Logger {
	return log.StandardLogger()
}

// WithError error 필드를 포함한 로그 Entry를 반환합니다.
func WithError(component string, err error) *log.Entry {
	return log.WithFields(log.Fields{
		"component": component,
		"error":     err,
	})
}
