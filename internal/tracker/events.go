package tracker

import (
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
)

// UpdateResult 갱신 주기 한 번의 결과입니다.
//
// 매 주기마다 새로 생성되어 이벤트 채널로 발행되며, 상품 상태에 반영된 후에는
// 저장되지 않는 일회성 값입니다.
type UpdateResult struct {
	// ProductID 결과가 속한 상품의 식별자
	ProductID string

	// Success 갱신 주기가 탐지 실패 없이 완료되었는지 여부
	Success bool

	// ChangedName 상품명이 변경되었는지 여부
	ChangedName bool

	// ChangedPrice 가격이 변경되었는지 여부
	ChangedPrice bool

	// PreviousName / NewName 상품명 변경 전후 값 (ChangedName일 때만 유효)
	PreviousName string
	NewName      string

	// PreviousAmount / NewAmount 가격 변경 전후 값 (센트 단위, ChangedPrice일 때만 유효)
	PreviousAmount int64
	NewAmount      int64

	// ErrorKind 실패 종류입니다. 성공 시 ErrorKindNone이며,
	// ErrorKindTrackingFault는 폴링 루프의 종료를 의미합니다.
	ErrorKind detect.ErrorKind

	// CheckedAt 갱신 시도 시각
	CheckedAt time.Time
}

// Terminal 이 결과가 폴링 루프를 종료시키는 종류인지 여부를 반환합니다.
// 복구 가능한 탐지 실패(가져오기 실패, 가격/상품명 미발견)는 루프를 유지합니다.
func (r UpdateResult) Terminal() bool {
	return r.ErrorKind == detect.ErrorKindTrackingFault
}

// Changed 상품명 또는 가격 변경이 있었는지 여부를 반환합니다.
func (r UpdateResult) Changed() bool {
	return r.ChangedName || r.ChangedPrice
}
