// Package tracker 등록된 상품들의 가격/상품명 변동을 주기적으로 추적하는 서비스를 제공합니다.
//
// 상품마다 독립적인 폴링 고루틴 하나가 지터가 적용된 주기로 페이지를 다시 가져와,
// 등록 시점에 고정된 가격 위치를 다시 찾아 파싱하고 변동 이벤트를 발행합니다.
// 상품 간에는 공유 가변 상태가 없으며, 저장소 쓰기만 저장소 계층에서 직렬화됩니다.
package tracker

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
)

// NameHistoryEntry 상품명 변동 이력의 한 항목입니다.
type NameHistoryEntry struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceHistoryEntry 가격 변동 이력의 한 항목입니다. 금액은 센트 단위입니다.
type PriceHistoryEntry struct {
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackedProduct 추적 중인 상품 하나의 전체 상태입니다.
//
// 사용자가 탐지 결과를 확정(Commit)할 때 생성되며, 이후에는 해당 상품의 폴링
// 루프만이 변경합니다. 이력은 추가 전용(append-only)이며 시간순으로 유지됩니다.
//
// 폴링 루프의 쓰기와 Clone()을 통한 읽기(저장소, 알림, API)가 동시에 일어날 수
// 있으므로, 변경되는 필드는 모두 mu로 보호됩니다.
type TrackedProduct struct {
	mu sync.Mutex

	// ID 상품의 식별자입니다. URL에서 유도됩니다.
	ID string `json:"id"`

	// URL 추적 대상 상품 페이지 주소
	URL string `json:"url"`

	// DisplayName 현재 상품명
	DisplayName string `json:"display_name"`

	// SelectedAmount 현재 추적 중인 가격 (센트 단위)
	SelectedAmount int64 `json:"selected_amount"`

	// PriceLocation 등록 시점에 선택된 가격의 문서 내 위치 참조.
	// 갱신 주기마다 새 문서에서 이 위치만 다시 찾아 파싱합니다.
	PriceLocation *detect.Location `json:"price_location"`

	// Locale 등록 시점에 결정된 로케일. 문서당 한 번 결정되면 변경되지 않습니다.
	Locale *detect.LocaleDescriptor `json:"locale"`

	// AutoDetect true이면 갱신 주기마다 상품명 추출을 다시 수행합니다.
	// 가격은 autoDetect 여부와 무관하게 항상 고정된 위치 참조를 재사용합니다.
	// (가격 소스 탐색은 등록 시점에 한 번만 수행됨)
	AutoDetect bool `json:"auto_detect"`

	// LastChecked 마지막 갱신 시도 시각
	LastChecked time.Time `json:"last_checked"`

	// NameUpdatedAt 현재 상품명이 처음 관측된 시각
	NameUpdatedAt time.Time `json:"name_updated_at"`

	// PriceUpdatedAt 현재 가격이 처음 관측된 시각
	PriceUpdatedAt time.Time `json:"price_updated_at"`

	// NameHistory 상품명 변동 이력 (시간순, 추가 전용)
	NameHistory []NameHistoryEntry `json:"name_history,omitempty"`

	// PriceHistory 가격 변동 이력 (시간순, 추가 전용)
	PriceHistory []PriceHistoryEntry `json:"price_history,omitempty"`
}

// ProductID URL로부터 상품 식별자를 유도합니다.
func ProductID(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// Ready 상품이 추적을 시작할 수 있는 상태인지 여부를 반환합니다.
// 선택된 가격 위치와 로케일이 없으면 추적할 수 없습니다.
func (p *TrackedProduct) Ready() bool {
	return p.URL != "" && p.PriceLocation != nil && p.PriceLocation.Selector != "" && p.Locale != nil
}

// applyName 새로 관측된 상품명을 반영합니다. 변경이 있었으면 true를 반환합니다.
//
// 최초 변경 시에는 이전 값이 원래 관측 시각과 함께 이력에 먼저 추가되므로,
// 이력에는 항상 변경 전후 값이 모두 남습니다.
func (p *TrackedProduct) applyName(name string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" || name == p.DisplayName {
		return false
	}

	if len(p.NameHistory) == 0 {
		p.NameHistory = append(p.NameHistory, NameHistoryEntry{Name: p.DisplayName, Timestamp: p.NameUpdatedAt})
	}
	p.NameHistory = append(p.NameHistory, NameHistoryEntry{Name: name, Timestamp: now})

	p.DisplayName = name
	p.NameUpdatedAt = now

	return true
}

// applyPrice 새로 관측된 가격을 반영합니다. 변경이 있었으면 true를 반환합니다.
func (p *TrackedProduct) applyPrice(amount int64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount <= 0 || amount == p.SelectedAmount {
		return false
	}

	if len(p.PriceHistory) == 0 {
		p.PriceHistory = append(p.PriceHistory, PriceHistoryEntry{Amount: p.SelectedAmount, Timestamp: p.PriceUpdatedAt})
	}
	p.PriceHistory = append(p.PriceHistory, PriceHistoryEntry{Amount: amount, Timestamp: now})

	p.SelectedAmount = amount
	p.PriceUpdatedAt = now

	return true
}

// markChecked 갱신 시도 시각을 기록합니다.
func (p *TrackedProduct) markChecked(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.LastChecked = now
}

// setPriceSource 자동 재탐지가 찾아낸 새 가격 소스로 교체합니다.
// 호출 전에 해당 상품의 폴링 루프가 중지되어 있어야 합니다.
func (p *TrackedProduct) setPriceSource(location *detect.Location, locale *detect.LocaleDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PriceLocation = location
	p.Locale = locale
}

// Clone 상품의 깊은 복사본을 반환합니다.
// 폴링 루프 바깥(저장소, 알림, API)으로 상태를 전달할 때 사용합니다.
func (p *TrackedProduct) Clone() *TrackedProduct {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := &TrackedProduct{
		ID:             p.ID,
		URL:            p.URL,
		DisplayName:    p.DisplayName,
		SelectedAmount: p.SelectedAmount,
		AutoDetect:     p.AutoDetect,
		LastChecked:    p.LastChecked,
		NameUpdatedAt:  p.NameUpdatedAt,
		PriceUpdatedAt: p.PriceUpdatedAt,
	}

	if p.PriceLocation != nil {
		location := *p.PriceLocation
		clone.PriceLocation = &location
	}
	if p.Locale != nil {
		locale := *p.Locale
		clone.Locale = &locale
	}

	clone.NameHistory = append([]NameHistoryEntry(nil), p.NameHistory...)
	clone.PriceHistory = append([]PriceHistoryEntry(nil), p.PriceHistory...)

	return clone
}
