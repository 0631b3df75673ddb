package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// component 로깅용 컴포넌트 이름
const component = "detect"

// Detector 문서 하나에 대한 전체 탐지 파이프라인을 수행합니다.
//
// 탐지 자체는 동기적이고 문서에 대해 부수 효과가 없으므로, 하나의 Detector를
// 여러 고루틴이 동시에 사용해도 안전합니다.
type Detector struct {
	table *LocaleTable

	attributeKeywords []string
}

// DetectorOption Detector 생성 옵션입니다.
type DetectorOption func(*Detector)

// WithAttributeKeywords 속성/스크립트 키에서 가격을 식별하는 키워드 목록을 교체합니다.
func WithAttributeKeywords(keywords []string) DetectorOption {
	return func(d *Detector) {
		if len(keywords) > 0 {
			d.attributeKeywords = keywords
		}
	}
}

// NewDetector 새로운 Detector 인스턴스를 생성합니다.
// 로케일 테이블은 프로세스 시작 시 한 번 생성하여 명시적으로 전달합니다.
func NewDetector(table *LocaleTable, opts ...DetectorOption) *Detector {
	d := &Detector{
		table:             table,
		attributeKeywords: defaultAttributeKeywords,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table Detector가 사용하는 로케일 테이블을 반환합니다.
func (d *Detector) Table() *LocaleTable {
	return d.table
}

// Detect 문서에 대한 전체 탐지 파이프라인을 수행합니다:
// 로케일 결정 → 상품명 추출 → 가격 후보 추출 → 스코어링/선택.
//
// 실패는 *DetectionError로 반환되며, 최초 탐지(등록 시점)에서의 실패는
// 해당 시도에 대해 종료적입니다. 호출자는 입력을 수정하거나 수동 모드로
// 전환할 수 있습니다.
func (d *Detector) Detect(doc *goquery.Document) (*Result, error) {
	locale := d.table.ResolveLocale(doc)
	if locale == nil {
		return nil, NewError(ErrorKindLocaleNotFound, "페이지의 숫자/통화 표기 규칙을 결정할 수 없습니다.")
	}

	name := d.ExtractName(doc)
	if name == "" {
		return nil, NewError(ErrorKindNameNotFound, "페이지에서 상품명을 추출할 수 없습니다.")
	}

	candidates := d.extractCandidates(doc, locale, name)
	prices := d.selectBestPrices(candidates)
	if len(prices) == 0 {
		return nil, NewError(ErrorKindPriceNotFound, "페이지에서 추적 가능한 가격을 찾을 수 없습니다.")
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"name":       name,
		"locale":     locale.LanguageTag,
		"candidates": len(candidates),
		"selected":   len(prices),
		"best":       prices[0].Parsed.Amount,
	}).Debug("탐지 완료")

	return &Result{
		Name:   name,
		Locale: locale,
		Prices: prices,
	}, nil
}

// ReadLocation 새로 가져온 문서에서 저장된 위치 참조를 다시 찾아 원시 텍스트를 읽습니다.
//
// 위치의 종류에 따라 지정된 속성 값, JSON-LD 경로의 값, 또는 요소의 텍스트를
// 반환합니다. 위치를 찾을 수 없으면 두 번째 반환값이 false입니다.
// 반환된 텍스트는 저장된 로케일로 ParsePrice에 전달됩니다.
func ReadLocation(doc *goquery.Document, location *Location) (string, bool) {
	if doc == nil || location == nil || location.Selector == "" {
		return "", false
	}

	sel := doc.Find(location.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}

	if location.Attribute != "" {
		return sel.Attr(location.Attribute)
	}

	if location.JSONPath != "" {
		raw := sel.Text()
		if !gjson.Valid(raw) {
			return "", false
		}
		value := gjson.Get(raw, location.JSONPath)
		if !value.Exists() {
			return "", false
		}
		return value.String(), true
	}

	text := strings.TrimSpace(sel.Text())
	return text, text != ""
}
