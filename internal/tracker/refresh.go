package tracker

import (
	"context"
	"time"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
	"github.com/darkkaiser/pricewatch-server/internal/scraper"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// refresher 갱신 주기 한 번(문서 재수집 → 고정 위치 재파싱 → 변동 비교)을 수행합니다.
//
// 상품 상태의 변경은 해당 상품의 폴링 루프 안에서만 일어나므로 락이 필요 없습니다.
type refresher struct {
	loader   scraper.Loader
	detector *detect.Detector
}

// refresh 상품 하나에 대한 갱신 주기를 수행하고 상태를 반영합니다.
//
// 가져오기 실패와 가격/상품명 미발견은 복구 가능한 실패로 결과에 기록될 뿐
// 에러를 반환하지 않습니다. 전체 가격 재탐지는 수행하지 않으며, 등록 시점에
// 고정된 위치 참조만 다시 찾아 파싱합니다. autoDetect 상품은 상품명 추출만
// 추가로 다시 수행합니다.
func (r *refresher) refresh(ctx context.Context, product *TrackedProduct) UpdateResult {
	now := time.Now()
	result := UpdateResult{
		ProductID: product.ID,
		CheckedAt: now,
	}
	product.markChecked(now)

	page, err := r.loader.Load(ctx, product.URL)
	if err != nil {
		result.ErrorKind = detect.ErrorKindFetchFailed
		return result
	}

	// 품절/삭제된 상품 페이지가 목록으로 돌려보내지는 경우를 가져오기 실패로 취급합니다.
	if page.Redirected {
		applog.WithComponentAndFields(component, applog.Fields{
			"product_id": product.ID,
			"url":        product.URL,
			"final_url":  page.FinalURL,
		}).Warn("상품 페이지가 다른 위치로 리다이렉트되었습니다")

		result.ErrorKind = detect.ErrorKindFetchFailed
		return result
	}

	if product.AutoDetect {
		name := r.detector.ExtractName(page.Document)
		if name == "" {
			result.ErrorKind = detect.ErrorKindNameNotFound
		} else if product.applyName(name, now) {
			result.ChangedName = true
			result.NewName = name
			if len(product.NameHistory) >= 2 {
				result.PreviousName = product.NameHistory[len(product.NameHistory)-2].Name
			}
		}
	}

	text, found := detect.ReadLocation(page.Document, product.PriceLocation)
	if !found {
		result.ErrorKind = detect.ErrorKindPriceNotFound
		return result
	}

	parsed := r.detector.Table().ParsePrice(text, product.Locale)
	if !parsed.Valid {
		result.ErrorKind = detect.ErrorKindPriceNotFound
		return result
	}

	previousAmount := product.SelectedAmount
	if product.applyPrice(parsed.Amount, now) {
		result.ChangedPrice = true
		result.PreviousAmount = previousAmount
		result.NewAmount = parsed.Amount
	}

	result.Success = result.ErrorKind == detect.ErrorKindNone
	return result
}
