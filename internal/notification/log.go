package notification

import (
	"context"

	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// LogSender 알림을 애플리케이션 로그로 기록하는 Sender 구현체입니다.
//
// 외부 알림 채널이 구성되지 않은 환경에서도 변동 내역이 유실되지 않도록
// 항상 Dispatcher에 포함됩니다.
type LogSender struct{}

var _ Sender = (*LogSender)(nil)

// NewLogSender 로그 Sender를 생성합니다.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// ID 알림 채널의 식별자를 반환합니다.
func (s *LogSender) ID() string {
	return "log"
}

// Notify 이벤트를 로그 엔트리로 기록합니다. 실패하지 않습니다.
func (s *LogSender) Notify(_ context.Context, event Event) error {
	entry := applog.WithComponentAndFields(component, applog.Fields{
		"event_kind":   event.Kind.String(),
		"product_id":   event.ProductID,
		"product_name": event.ProductName,
		"url":          event.URL,
	})

	if event.ErrorOccurred {
		entry.Error(event.Message)
	} else {
		entry.Info(event.Message)
	}

	return nil
}

// NewDispatcherFromSenders 구성된 채널들과 로그 채널을 묶어 Dispatcher를 생성합니다.
func NewDispatcherFromSenders(senders ...Sender) *Dispatcher {
	all := make([]Sender, 0, len(senders)+1)
	all = append(all, NewLogSender())
	all = append(all, senders...)
	return NewDispatcher(all...)
}
