// Package storage 추적 상품 상태의 파일 기반 영속화를 담당합니다.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	"github.com/darkkaiser/pricewatch-server/internal/tracker"
	"github.com/darkkaiser/pricewatch-server/pkg/concurrency"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// component 상품 저장소의 로깅용 컴포넌트 이름
const component = "tracker.storage"

// tempFilePattern 임시 파일 저장 시 사용되는 임시 파일의 이름 패턴입니다.
const tempFilePattern = "products-*.tmp"

// snapshot 저장 파일의 최상위 구조입니다.
type snapshot struct {
	SavedAt  time.Time                 `json:"saved_at"`
	Products []*tracker.TrackedProduct `json:"products"`
}

// FileStore 추적 상품 전체를 하나의 JSON 파일로 저장하는 저장소 구현체입니다.
//
// 모든 쓰기는 "임시 파일 쓰기 → fsync → 원자적 rename" 전략으로 수행되어,
// 저장 도중 프로세스가 종료되어도 파일이 중간 상태로 남지 않습니다.
// 이력이 절반만 기록된 상태가 디스크에 관측되는 일은 없습니다.
type FileStore struct {
	path string

	// locks 동일 파일에 대한 동시 쓰기를 직렬화하는 파일별 뮤텍스입니다.
	locks *concurrency.KeyedMutex
}

var _ tracker.Store = (*FileStore)(nil)

// NewFileStore 파일 기반 상품 저장소를 생성합니다.
//
// 상대 경로는 절대 경로로 변환되며, 초기화 시 저장 디렉토리를 생성하고
// 이전 실행에서 남은 임시 파일을 백그라운드에서 정리합니다.
func NewFileStore(path string) (*FileStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "저장 경로를 절대 경로로 변환하는데 실패했습니다: '%s'", path)
	}

	// 저장소 초기화 시점에 디렉토리 생성 및 접근 권한을 미리 확인합니다.
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "저장 디렉토리 생성에 실패했습니다: '%s'", dir)
	}

	s := &FileStore{
		path:  absPath,
		locks: concurrency.NewKeyedMutex(),
	}

	// 서버 시작 속도에 영향을 주지 않도록 임시 파일 정리는 비동기로 수행합니다.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				applog.WithComponentAndFields(component, applog.Fields{
					"dir":   dir,
					"panic": r,
				}).Error("임시 파일 정리 중단: 백그라운드 작업 패닉 발생")
			}
		}()

		s.cleanupStaleTempFiles(dir)
	}()

	return s, nil
}

// cleanupStaleTempFiles 이전 실행의 비정상 종료로 남겨진 오래된 임시 파일을 정리합니다.
func (s *FileStore) cleanupStaleTempFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"dir":   dir,
			"error": err,
		}).Warn("임시 파일 정리 중단: 디렉토리 조회 실패")

		return
	}

	// 최근 1시간 이내에 수정된 임시 파일은 사용 중일 수 있으므로 보호합니다.
	threshold := time.Now().Add(-1 * time.Hour)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matched, _ := filepath.Match(tempFilePattern, entry.Name())
		if !matched {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(threshold) {
			continue
		}

		fullPath := filepath.Join(dir, entry.Name())
		if err := os.Remove(fullPath); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"file":  fullPath,
				"error": err,
			}).Warn("임시 파일 삭제 실패")
		} else {
			applog.WithComponentAndFields(component, applog.Fields{
				"file": fullPath,
			}).Info("이전 실행의 임시 파일을 정리하였습니다")
		}
	}
}

// Load 저장된 상품 목록을 읽어옵니다. 파일이 아직 없으면 빈 목록을 반환합니다.
//
// 쓰기 중인 파일을 읽는 것을 방지하기 위해 읽기에도 파일별 락을 적용합니다.
func (s *FileStore) Load() ([]*tracker.TrackedProduct, error) {
	var data []byte
	err := s.locks.WithLock(strings.ToLower(s.path), func() error {
		var readErr error
		data, readErr = os.ReadFile(s.path)
		return readErr
	})
	if err != nil {
		// 첫 실행 등으로 파일이 아직 생성되지 않은 경우
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrapf(err, apperrors.System, "추적 상품 파일을 읽을 수 없습니다: '%s'", s.path)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ParsingFailed, "추적 상품 파일의 형식이 올바르지 않습니다: '%s'", s.path)
	}

	return snap.Products, nil
}

// Save 상품 목록 전체를 원자적으로 저장합니다.
//
// JSON 직렬화는 락 획득 전에 수행하여 락 보유 시간을 최소화합니다.
func (s *FileStore) Save(products []*tracker.TrackedProduct) error {
	snap := snapshot{
		SavedAt:  time.Now(),
		Products: products,
	}

	data, err := json.MarshalIndent(&snap, "", "\t")
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "추적 상품 직렬화에 실패했습니다")
	}

	return s.locks.WithLock(strings.ToLower(s.path), func() error {
		return s.writeAtomic(data)
	})
}

// writeAtomic 데이터를 "임시 파일 쓰기 → fsync → 원자적 rename" 순서로 저장합니다.
//
// 임시 파일은 최종 파일과 같은 디렉토리에 생성해야 rename이 원자적으로 동작합니다.
func (s *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "저장 디렉토리 생성에 실패했습니다: '%s'", dir)
	}

	tmpFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 생성에 실패했습니다")
	}
	tmpPath := tmpFile.Name()

	// Windows에서는 파일이 열려있는 동안 삭제할 수 없으므로 Close가 Remove보다 먼저 실행되어야 합니다.
	defer os.Remove(tmpPath)
	defer tmpFile.Close()

	if _, err := tmpFile.Write(data); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 쓰기에 실패했습니다")
	}

	// 운영체제 버퍼에만 기록된 상태에서 전원이 차단되는 것을 방지합니다.
	if err := tmpFile.Sync(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 동기화(fsync)에 실패했습니다")
	}

	if err := tmpFile.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 닫기에 실패했습니다")
	}

	if err := s.renameWithRetry(tmpPath, s.path); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "추적 상품 파일 교체에 실패했습니다: '%s'", s.path)
	}

	// 파일명 변경 사항을 디스크에 기록하기 위해 부모 디렉토리를 fsync합니다.
	// 실패해도 치명적이지 않으므로 에러를 무시합니다.
	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// renameWithRetry 파일 이름 변경을 재시도 로직과 함께 수행합니다.
//
// Windows 개발 환경에서 백신/인덱서가 파일을 일시적으로 잠그는 경우를 우회합니다.
func (s *FileStore) renameWithRetry(oldPath, newPath string) error {
	const maxRetries = 5
	const retryDelay = 10 * time.Millisecond

	var lastErr error
	for range maxRetries {
		if err := os.Rename(oldPath, newPath); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(retryDelay)
	}

	return lastErr
}
