package detect

import (
	"errors"
)

// ErrorKind 탐지 실패의 종류입니다.
//
// 탐지 실패는 예상 가능한 결과이므로 시스템 장애(AppError)와 엄격히 구분됩니다.
// 정기 갱신 중의 FetchFailed/NameNotFound/PriceNotFound는 복구 가능한 실패로
// 기록 후 다음 주기에 재시도되며, 최초 탐지(등록) 시점의 동일한 실패는 해당
// 시도에 대해 종료적입니다. TrackingFault는 항상 추적 루프를 종료시킵니다.
type ErrorKind int

const (
	// ErrorKindNone 실패 없음
	ErrorKindNone ErrorKind = iota

	// ErrorKindFetchFailed 응답 없음/비정상 응답 또는 의심스러운 리다이렉트
	ErrorKindFetchFailed

	// ErrorKindLocaleNotFound 페이지의 숫자/통화 표기 규칙을 결정할 수 없음
	ErrorKindLocaleNotFound

	// ErrorKindNameNotFound 상품명을 추출할 수 없음
	ErrorKindNameNotFound

	// ErrorKindPriceNotFound 추적 가능한 가격 후보가 하나도 없음
	ErrorKindPriceNotFound

	// ErrorKindMissingManualParameters 수동 모드에 필수 항목(이름/위치/로케일)이 누락됨
	ErrorKindMissingManualParameters

	// ErrorKindTrackingFault 추적 루프 내부의 예기치 않은 장애
	ErrorKindTrackingFault
)

// errorKindNames ErrorKind의 문자열 표현 테이블입니다.
var errorKindNames = map[ErrorKind]string{
	ErrorKindNone:                    "none",
	ErrorKindFetchFailed:             "fetch_failed",
	ErrorKindLocaleNotFound:          "locale_not_found",
	ErrorKindNameNotFound:            "name_not_found",
	ErrorKindPriceNotFound:           "price_not_found",
	ErrorKindMissingManualParameters: "missing_manual_parameters",
	ErrorKindTrackingFault:           "tracking_fault",
}

// String ErrorKind의 문자열 표현을 반환합니다.
func (k ErrorKind) String() string {
	if name, exists := errorKindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Recoverable 정기 갱신 중 발생했을 때 루프를 유지한 채 다음 주기에
// 재시도할 수 있는 실패 종류인지 여부를 반환합니다.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrorKindFetchFailed, ErrorKindNameNotFound, ErrorKindPriceNotFound:
		return true
	default:
		return false
	}
}

// DetectionError 종류가 지정된 탐지 실패입니다.
type DetectionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error 표준 errors.Error 인터페이스를 구현합니다.
func (e *DetectionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap 원인 에러를 반환합니다.
func (e *DetectionError) Unwrap() error {
	return e.Cause
}

// NewError 새로운 DetectionError를 생성합니다.
func NewError(kind ErrorKind, message string) *DetectionError {
	return &DetectionError{Kind: kind, Message: message}
}

// WrapError 원인 에러를 포함하는 DetectionError를 생성합니다.
func WrapError(cause error, kind ErrorKind, message string) *DetectionError {
	return &DetectionError{Kind: kind, Message: message, Cause: cause}
}

// KindOf 에러에서 탐지 실패 종류를 추출합니다.
// DetectionError가 아닌 에러는 모두 ErrorKindTrackingFault로 분류됩니다.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var detectionErr *DetectionError
	if errors.As(err, &detectionErr) {
		return detectionErr.Kind
	}
	return ErrorKindTrackingFault
}
