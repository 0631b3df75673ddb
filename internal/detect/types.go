// Package detect 상품 페이지에서 가격과 상품명을 추출하는 탐지 엔진을 제공합니다.
//
// 탐지는 4단계로 진행됩니다: 로케일 결정(숫자/통화 표기 규칙 추론) → 가격 후보
// 추출(구조화 메타, 속성, 스크립트, 표시 텍스트의 4개 소스 계층) → 후보 스코어링 및
// 선택 → 상품명 추출. 모든 판정은 규칙과 점수 기반이며, 실패는 에러가 아닌
// 타입이 지정된 결과(ErrorKind)로 보고됩니다.
package detect

import (
	"golang.org/x/net/html"
)

// SourceKind 가격 후보가 발견된 소스의 신뢰 등급입니다.
type SourceKind int

const (
	// SourceMetaOrStructured 구조화된 메타 태그 또는 JSON-LD 상품 스키마 (최상위 신뢰)
	SourceMetaOrStructured SourceKind = iota

	// SourceAttribute 이름에 가격 키워드가 포함된 요소 속성
	SourceAttribute

	// SourceScriptEmbedded 스크립트 본문에 내장된 key/value 쌍 (DOM 위치 없음, 보조 신호 전용)
	SourceScriptEmbedded

	// SourceVisibleText 화면에 표시되는 최하위 텍스트 노드
	SourceVisibleText
)

// sourceKindNames SourceKind의 문자열 표현 테이블입니다.
var sourceKindNames = map[SourceKind]string{
	SourceMetaOrStructured: "meta",
	SourceAttribute:        "attribute",
	SourceScriptEmbedded:   "script",
	SourceVisibleText:      "text",
}

// String SourceKind의 문자열 표현을 반환합니다.
func (k SourceKind) String() string {
	if name, exists := sourceKindNames[k]; exists {
		return name
	}
	return "unknown"
}

// LocaleDescriptor 페이지가 사용하는 숫자/통화 표기 규칙입니다.
// 문서에 대해 한 번 결정되면 변경되지 않습니다.
type LocaleDescriptor struct {
	// DecimalSeparator 소수점 구분 문자 (GroupSeparator와 항상 다름)
	DecimalSeparator rune `json:"decimal_separator"`

	// GroupSeparator 자릿수 그룹 구분 문자
	GroupSeparator rune `json:"group_separator"`

	// CurrencySymbol 통화 기호 (항상 비어있지 않음, 예: "₩", "$", "zł")
	CurrencySymbol string `json:"currency_symbol"`

	// ISOCode ISO 4217 통화 코드 (예: "KRW", "USD")
	ISOCode string `json:"iso_code"`

	// LanguageTag BCP 47 언어 태그 (예: "ko-KR")
	LanguageTag string `json:"language_tag"`
}

// ParsedPrice 텍스트 조각 하나를 파싱한 결과입니다. 파싱 시도마다 새로 생성되며 변경되지 않습니다.
type ParsedPrice struct {
	// OriginalText 파싱에 입력된 원본 텍스트
	OriginalText string

	// NormalizedText 엔티티 디코딩과 공백 정리가 완료된 텍스트.
	// 이 값을 다시 파싱해도 동일한 Amount가 나오는 것이 보장됩니다.
	NormalizedText string

	// Amount 고정 소수점 금액입니다. (센트 단위, 예: 19.99 → 1999)
	Amount int64

	// CurrencySymbol 숫자 주변에서 발견된 통화 기호 (없으면 빈 문자열)
	CurrencySymbol string

	// Valid 숫자 파싱에 성공했고 금액이 0보다 큰지 여부
	Valid bool
}

// Location 가격 후보의 문서 내 위치 참조입니다.
// 새로 가져온 문서에서 동일한 위치를 다시 찾는 데 사용됩니다.
type Location struct {
	// Selector 루트로부터의 CSS 선택자 경로 (예: "html > body > div:nth-child(2) > span:nth-child(1)")
	Selector string `json:"selector"`

	// Attribute 값을 읽을 속성 이름. 비어있으면 요소의 텍스트를 읽습니다.
	Attribute string `json:"attribute,omitempty"`

	// JSONPath JSON-LD 스크립트 요소에서 값을 읽을 gjson 경로
	JSONPath string `json:"json_path,omitempty"`
}

// NameDistanceUnknown 상품명과의 거리를 계산할 수 없음을 나타내는 값입니다.
const NameDistanceUnknown = -1

// PriceCandidate 문서의 한 위치에서 추출된 가격 후보 하나입니다.
// 여러 후보가 동일한 금액을 가질 수 있습니다.
type PriceCandidate struct {
	// Parsed 파싱된 가격 값
	Parsed ParsedPrice

	// Kind 후보가 발견된 소스 계층
	Kind SourceKind

	// NameDistance 상품명이 포함된 가장 가까운 조상 요소까지의 홉 수.
	// 텍스트 노드 후보에만 계산되며, 그 외에는 NameDistanceUnknown입니다.
	NameDistance int

	// Location 문서 내 위치 참조. 스코어링에서 살아남은 대표 후보에 대해서만
	// 지연 계산되며, 그 전까지는 nil입니다.
	Location *Location

	// node 후보가 발견된 DOM 노드. 스크립트 내장 후보는 nil입니다.
	node *html.Node

	// attrName 속성 후보의 속성 이름
	attrName string

	// jsonPath JSON-LD 후보의 gjson 경로
	jsonPath string
}

// Locatable 후보가 문서 내에서 다시 찾을 수 있는 DOM 위치를 갖는지 여부를 반환합니다.
// 스크립트 내장 후보는 위치가 없으므로 추적 대상 가격이 될 수 없습니다.
func (c *PriceCandidate) Locatable() bool {
	return c.node != nil
}

// HasCurrencySymbol 후보의 텍스트에서 알려진 통화 기호가 발견되었는지 여부를 반환합니다.
func (c *PriceCandidate) HasCurrencySymbol() bool {
	return c.Parsed.CurrencySymbol != ""
}

// Result 문서 하나에 대한 탐지 결과입니다.
type Result struct {
	// Name 추출된 상품명
	Name string

	// Locale 문서에 대해 결정된 로케일
	Locale *LocaleDescriptor

	// Prices 점수 순으로 정렬된 가격 후보 목록입니다. 첫 번째가 최선의 후보이며,
	// 나머지는 사용자가 선택할 수 있는 대안입니다. 모든 항목의 Location이 채워져 있습니다.
	Prices []*PriceCandidate
}

// BestPrice 최고 점수의 가격 후보를 반환합니다. 후보가 없으면 nil입니다.
func (r *Result) BestPrice() *PriceCandidate {
	if len(r.Prices) == 0 {
		return nil
	}
	return r.Prices[0]
}
