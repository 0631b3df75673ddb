// Package service 애플리케이션을 구성하는 장기 실행 서비스의 공통 계약을 정의합니다.
package service

import (
	"context"
	"sync"
)

// Service 장기 실행 서비스의 생명주기 계약입니다.
//
// Start는 즉시 반환되며, 실제 작업은 내부 고루틴에서 수행됩니다.
// serviceStopCtx가 취소되면 서비스는 정리 작업을 마친 뒤 serviceStopWG에
// 완료를 알려야 합니다.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}
