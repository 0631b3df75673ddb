// Package notification 가격/상품명 변동과 추적 장애를 외부 채널로 전달합니다.
//
// 추적 서비스의 이벤트 펌프가 생성한 Event를 등록된 모든 Sender에게 전파하며,
// 개별 채널의 전송 실패가 다른 채널이나 추적 루프에 영향을 주지 않도록 격리합니다.
package notification

import (
	"context"
	"errors"
	"time"

	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// component 알림 전송의 로깅용 컴포넌트 이름
const component = "notification"

// EventKind 알림 이벤트의 종류입니다.
type EventKind int

const (
	// EventPriceChanged 추적 중인 가격이 변동됨
	EventPriceChanged EventKind = iota

	// EventNameChanged 상품명이 변동됨
	EventNameChanged

	// EventTrackingStopped 예기치 않은 장애로 상품 추적이 중단됨
	EventTrackingStopped

	// EventInfo 서비스 기동/종료 등 일반 정보성 알림
	EventInfo
)

// eventKindNames EventKind의 문자열 표현 테이블입니다.
var eventKindNames = map[EventKind]string{
	EventPriceChanged:    "price_changed",
	EventNameChanged:     "name_changed",
	EventTrackingStopped: "tracking_stopped",
	EventInfo:            "info",
}

// String EventKind의 문자열 표현을 반환합니다.
func (k EventKind) String() string {
	if name, exists := eventKindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Event 알림 채널로 전달되는 단일 이벤트입니다.
type Event struct {
	// Kind 이벤트의 종류
	Kind EventKind

	// ProductID / ProductName / URL 이벤트가 속한 상품 정보 (정보성 알림은 비어있을 수 있음)
	ProductID   string
	ProductName string
	URL         string

	// Message 사용자에게 보여줄 본문
	Message string

	// ErrorOccurred true이면 장애 알림으로 표시됩니다.
	ErrorOccurred bool

	// OccurredAt 이벤트 발생 시각
	OccurredAt time.Time
}

// Sender 알림 이벤트를 단일 채널로 전송하는 인터페이스입니다.
type Sender interface {
	// ID 알림 채널의 식별자를 반환합니다.
	ID() string

	// Notify 이벤트를 전송합니다. 전송 실패는 호출자의 흐름을 중단시키지 않아야
	// 하므로, 에러는 기록/집계 용도로만 사용됩니다.
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 등록된 모든 Sender에게 이벤트를 전파하는 팬아웃 구현체입니다.
//
// Sender 하나의 실패는 로그로 남기고 나머지 채널로의 전파를 계속합니다.
type Dispatcher struct {
	senders []Sender
}

// 컴파일 타임에 인터페이스 구현을 강제합니다.
var _ Sender = (*Dispatcher)(nil)

// NewDispatcher 팬아웃 Dispatcher를 생성합니다.
func NewDispatcher(senders ...Sender) *Dispatcher {
	return &Dispatcher{senders: senders}
}

// ID Sender 인터페이스 구현입니다.
func (d *Dispatcher) ID() string {
	return "dispatcher"
}

// Notify 이벤트를 모든 채널로 전파합니다. 실패한 채널들의 에러를 결합하여 반환합니다.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	var errs []error

	for _, sender := range d.senders {
		if err := sender.Notify(ctx, event); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": sender.ID(),
				"event_kind":  event.Kind.String(),
				"product_id":  event.ProductID,
				"error":       err,
			}).Error("알림 전송에 실패하였습니다")

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
