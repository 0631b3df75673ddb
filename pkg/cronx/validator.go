package cronx

import (
	"fmt"
	"strings"
)

// Validate Cron 표현식의 유효성을 검사합니다.
//
// StandardParser()와 동일한 6필드(초 단위 포함) 형식을 기준으로 검증하며,
// 앞뒤 공백은 무시합니다.
func Validate(spec string) error {
	if _, err := StandardParser().Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("유효하지 않은 Cron 표현식입니다(spec=%q): %w", spec, err)
	}
	return nil
}
