package detect

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/darkkaiser/pricewatch-server/pkg/strutil"
)

// currencyMetaSources 통화 메타데이터를 담는 구조화 소스들입니다. (우선순위 순)
var currencyMetaSources = []structuredSource{
	{selector: `meta[itemprop="priceCurrency"]`, attr: "content"},
	{selector: `[itemprop="priceCurrency"]`, attr: "content"},
	{selector: `meta[property="og:price:currency"]`, attr: "content"},
	{selector: `meta[property="product:price:currency"]`, attr: "content"},
	{selector: `meta[name="twitter:data2"]`, attr: "content"},
}

// jsonLDCurrencyPaths JSON-LD 상품 스키마에서 통화 코드를 찾을 gjson 경로들입니다.
var jsonLDCurrencyPaths = []string{
	"offers.priceCurrency",
	"offers.0.priceCurrency",
	"priceCurrency",
}

// langSources 언어 선언을 담는 소스들입니다. (우선순위 순)
var langSources = []structuredSource{
	{selector: "html", attr: "lang"},
	{selector: `meta[http-equiv="Content-Language"]`, attr: "content"},
	{selector: `meta[name="language"]`, attr: "content"},
}

const (
	// priceLikeMinSymbolRunes 가격성 텍스트로 인정되는 비숫자 문자의 최소 개수
	priceLikeMinSymbolRunes = 1

	// priceLikeMaxSymbolRunes 가격성 텍스트로 인정되는 비숫자 문자의 최대 개수.
	// 통화 기호와 ISO 코드는 통과시키되, 명백히 가격이 아닌 문장은 걸러냅니다.
	priceLikeMaxSymbolRunes = 10
)

// ResolveLocale 문서가 사용하는 숫자/통화 표기 규칙을 추론합니다.
//
// 세 단계를 순서대로 시도하며 첫 성공에서 멈춥니다:
//  1. 통화 메타데이터: 구조화 소스에서 통화 기호/ISO 코드를 읽어 로케일 조회
//  2. 가격 기반 투표: 가격처럼 보이는 텍스트 노드들의 통화 기호로 다수결
//  3. 언어 선언 폴백: html lang 속성 / Content-Language 메타
//
// 세 단계 모두 실패하면 nil을 반환합니다. 로케일 없이는 페이지를 추적할 수 없으므로
// 호출자는 이를 해당 상품에 대한 치명적 탐지 실패로 처리합니다.
func (t *LocaleTable) ResolveLocale(doc *goquery.Document) *LocaleDescriptor {
	if doc == nil {
		return nil
	}

	if locale := t.resolveByCurrencyMetadata(doc); locale != nil {
		return locale
	}
	if locale := t.resolveByPriceVoting(doc); locale != nil {
		return locale
	}
	return t.resolveByLanguageDeclaration(doc)
}

// resolveByCurrencyMetadata 1단계: 구조화 소스의 통화 메타데이터로 로케일을 찾습니다.
func (t *LocaleTable) resolveByCurrencyMetadata(doc *goquery.Document) *LocaleDescriptor {
	for _, source := range currencyMetaSources {
		var found *LocaleDescriptor

		doc.Find(source.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			value, exists := sel.Attr(source.attr)
			if !exists || strings.TrimSpace(value) == "" {
				return true
			}
			if locale := t.BySymbolOrISO(strings.TrimSpace(value)); locale != nil {
				found = locale
				return false
			}
			return true
		})

		if found != nil {
			return found
		}
	}

	// JSON-LD 상품 스키마의 priceCurrency도 구조화 소스로 취급합니다.
	var found *LocaleDescriptor
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := sel.Text()
		if !gjson.Valid(raw) {
			return true
		}
		for _, path := range jsonLDCurrencyPaths {
			if value := gjson.Get(raw, path); value.Exists() {
				if locale := t.BySymbolOrISO(value.String()); locale != nil {
					found = locale
					return false
				}
			}
		}
		return true
	})

	return found
}

// localeVote 가격 기반 투표의 한 그룹입니다. 형성된 순서가 유지됩니다.
type localeVote struct {
	locale *LocaleDescriptor
	count  int
}

// resolveByPriceVoting 2단계: 가격처럼 보이는 텍스트 노드들의 통화 기호로 다수결합니다.
//
// 숫자가 1개 이상이고 비숫자·비공백 문자가 1~10개인 최하위 텍스트 노드를 모두 수집하여,
// 각각에서 숫자와 구분 문자를 제거한 나머지로 로케일을 조회합니다. 가장 많은 표를 받은
// 로케일이 선택되며, 동률이면 먼저 형성된 그룹이 이깁니다. (맵 순회가 아닌
// 형성 순서 슬라이스를 사용하므로 결과는 항상 결정적입니다)
func (t *LocaleTable) resolveByPriceVoting(doc *goquery.Document) *LocaleDescriptor {
	var votes []*localeVote

	for _, text := range leafTexts(doc) {
		if !isPriceLikeText(text) {
			continue
		}

		symbol := trimToSymbol(text)
		if symbol == "" {
			continue
		}
		locale := t.BySymbolOrISO(symbol)
		if locale == nil {
			continue
		}

		voted := false
		for _, vote := range votes {
			if vote.locale == locale {
				vote.count++
				voted = true
				break
			}
		}
		if !voted {
			votes = append(votes, &localeVote{locale: locale, count: 1})
		}
	}

	var best *localeVote
	for _, vote := range votes {
		if best == nil || vote.count > best.count {
			best = vote
		}
	}
	if best == nil {
		return nil
	}
	return best.locale
}

// resolveByLanguageDeclaration 3단계: 언어 선언(lang 속성, Content-Language)으로 폴백합니다.
func (t *LocaleTable) resolveByLanguageDeclaration(doc *goquery.Document) *LocaleDescriptor {
	for _, source := range langSources {
		var found *LocaleDescriptor

		doc.Find(source.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			value, exists := sel.Attr(source.attr)
			if !exists {
				return true
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return true
			}
			// Content-Language는 쉼표로 구분된 목록일 수 있습니다.
			for _, tag := range strutil.SplitAndTrim(value, ",") {
				if locale := t.ByLanguageTag(tag); locale != nil {
					found = locale
					return false
				}
			}
			return true
		})

		if found != nil {
			return found
		}
	}

	return nil
}

// isPriceLikeText 텍스트가 가격처럼 보이는지 판별합니다:
// 숫자가 1개 이상이고, 숫자·공백을 제외한 문자가 1~10개여야 합니다.
func isPriceLikeText(text string) bool {
	digits := 0
	symbolRunes := 0
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r):
		default:
			symbolRunes++
		}
	}

	return digits >= 1 && symbolRunes >= priceLikeMinSymbolRunes && symbolRunes <= priceLikeMaxSymbolRunes
}
