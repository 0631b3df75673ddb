package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

// structuredPriceSources 가격을 담는 구조화 소스들입니다. (신뢰도 우선순위 순)
var structuredPriceSources = []structuredSource{
	{selector: `meta[itemprop="price"]`, attr: "content"},
	{selector: `[itemprop="price"]`, attr: "content"},
	{selector: `meta[property="og:price:amount"]`, attr: "content"},
	{selector: `meta[property="product:price:amount"]`, attr: "content"},
	{selector: `meta[name="twitter:data1"]`, attr: "content"},
}

// jsonLDPricePaths JSON-LD 상품 스키마에서 가격을 찾을 gjson 경로들입니다.
var jsonLDPricePaths = []string{
	"offers.price",
	"offers.0.price",
	"price",
}

// defaultAttributeKeywords 속성 이름에서 가격 속성을 식별하는 기본 키워드 목록입니다.
var defaultAttributeKeywords = []string{"price", "cost", "prize"}

// scriptKeyValuePattern 스크립트 본문에서 따옴표로 감싸인 key/value 쌍을 찾는 패턴입니다.
// 값은 숫자로 시작하고 길이가 제한된 숫자 리터럴이어야 합니다.
var scriptKeyValuePattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*"?([0-9][0-9 .,]{0,19})"?`)

const (
	// maxNameSearchDepth 상품명 근접도 계산 시 탐색할 최대 조상 깊이입니다.
	// 전체 문서 스캔이 아닌 제한된 상향 탐색만 수행합니다.
	maxNameSearchDepth = 10

	// minVisibleTextLength 표시 텍스트 후보로 인정되는 최소 길이입니다.
	minVisibleTextLength = 2
)

// extractCandidates 문서에서 가격 후보를 추출합니다.
//
// 1계층(구조화 소스)에서 유효한 후보가 1개라도 나오면 나머지 계층은 완전히
// 건너뜁니다. 구조화 소스는 판매자가 의도적으로 선언한 값이므로 권위 있는
// 소스로 취급하기 때문입니다. 1계층이 비어있을 때만 속성/스크립트/표시 텍스트
// 계층을 모두 수집하여 병합합니다.
func (d *Detector) extractCandidates(doc *goquery.Document, locale *LocaleDescriptor, nameHint string) []*PriceCandidate {
	if candidates := d.extractStructured(doc, locale); len(candidates) > 0 {
		return candidates
	}

	var candidates []*PriceCandidate
	candidates = append(candidates, d.extractScriptEmbedded(doc, locale)...)
	candidates = append(candidates, d.extractAttributes(doc, locale)...)
	candidates = append(candidates, d.extractVisibleText(doc, locale, nameHint)...)

	return candidates
}

// extractStructured 1계층: 구조화 메타 소스와 JSON-LD 상품 스키마에서 후보를 추출합니다.
//
// 각 소스는 지정된 속성을 먼저 읽고, 속성 값이 가격으로 파싱되지 않으면
// 요소 자체의 텍스트로 폴백합니다.
func (d *Detector) extractStructured(doc *goquery.Document, locale *LocaleDescriptor) []*PriceCandidate {
	var candidates []*PriceCandidate

	for _, source := range structuredPriceSources {
		doc.Find(source.selector).Each(func(_ int, sel *goquery.Selection) {
			if len(sel.Nodes) == 0 {
				return
			}
			node := sel.Nodes[0]

			if value, exists := sel.Attr(source.attr); exists {
				if parsed := d.table.ParsePrice(value, locale); parsed.Valid {
					candidates = append(candidates, &PriceCandidate{
						Parsed:       parsed,
						Kind:         SourceMetaOrStructured,
						NameDistance: NameDistanceUnknown,
						node:         node,
						attrName:     source.attr,
					})
					return
				}
			}

			if parsed := d.table.ParsePrice(sel.Text(), locale); parsed.Valid {
				candidates = append(candidates, &PriceCandidate{
					Parsed:       parsed,
					Kind:         SourceMetaOrStructured,
					NameDistance: NameDistanceUnknown,
					node:         node,
				})
			}
		})
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		raw := sel.Text()
		if !gjson.Valid(raw) {
			return
		}
		for _, path := range jsonLDPricePaths {
			value := gjson.Get(raw, path)
			if !value.Exists() {
				continue
			}
			if parsed := d.table.ParsePrice(value.String(), locale); parsed.Valid {
				candidates = append(candidates, &PriceCandidate{
					Parsed:       parsed,
					Kind:         SourceMetaOrStructured,
					NameDistance: NameDistanceUnknown,
					node:         sel.Nodes[0],
					jsonPath:     path,
				})
				return
			}
		}
	})

	return candidates
}

// extractScriptEmbedded 스크립트 본문에서 가격 키워드가 포함된 key/value 쌍을 추출합니다.
//
// 이 후보들은 DOM 위치가 없으므로 최종 추적 대상이 될 수 없으며,
// 다른 후보 그룹의 점수를 보강하는 보조 신호로만 사용됩니다.
func (d *Detector) extractScriptEmbedded(doc *goquery.Document, locale *LocaleDescriptor) []*PriceCandidate {
	var candidates []*PriceCandidate

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		for _, match := range scriptKeyValuePattern.FindAllStringSubmatch(sel.Text(), -1) {
			key, value := match[1], match[2]
			if !containsKeyword(key, d.attributeKeywords) {
				continue
			}
			if parsed := d.table.ParsePrice(value, locale); parsed.Valid {
				candidates = append(candidates, &PriceCandidate{
					Parsed:       parsed,
					Kind:         SourceScriptEmbedded,
					NameDistance: NameDistanceUnknown,
				})
			}
		}
	})

	return candidates
}

// extractAttributes 이름에 가격 키워드가 포함된 모든 요소 속성에서 후보를 추출합니다.
func (d *Detector) extractAttributes(doc *goquery.Document, locale *LocaleDescriptor) []*PriceCandidate {
	var candidates []*PriceCandidate

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if !containsKeyword(attr.Key, d.attributeKeywords) {
					continue
				}
				if parsed := d.table.ParsePrice(attr.Val, locale); parsed.Valid {
					candidates = append(candidates, &PriceCandidate{
						Parsed:       parsed,
						Kind:         SourceAttribute,
						NameDistance: NameDistanceUnknown,
						node:         n,
						attrName:     attr.Key,
					})
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}

	return candidates
}

// extractVisibleText 화면에 표시되는 최하위 텍스트 노드에서 후보를 추출합니다.
//
// 하이퍼링크 조상을 가진 텍스트는 "관련 상품" 링크일 가능성이 높아 제외하며,
// 텍스트 노드 후보에만 상품명 근접도(NameDistance)를 계산합니다.
func (d *Detector) extractVisibleText(doc *goquery.Document, locale *LocaleDescriptor, nameHint string) []*PriceCandidate {
	var candidates []*PriceCandidate

	walkTextNodes(doc, func(node *html.Node, text string) {
		if len([]rune(text)) < minVisibleTextLength {
			return
		}
		if hasHyperlinkAncestor(node) {
			return
		}

		parsed := d.table.ParsePrice(text, locale)
		if !parsed.Valid {
			return
		}

		candidates = append(candidates, &PriceCandidate{
			Parsed:       parsed,
			Kind:         SourceVisibleText,
			NameDistance: nameDistance(node, nameHint),
			node:         node,
		})
	})

	return candidates
}

// nameDistance 텍스트 노드에서 상품명이 포함된 가장 가까운 조상까지의 홉 수를 계산합니다.
//
// 후보의 부모 요소부터 바깥쪽으로 탐색하며, 부모 요소의 텍스트에 상품명 힌트가
// 완전한 단어로(대소문자 구분 없음) 포함되면 그 지점까지의 홉 수를 반환합니다.
// 탐색 깊이는 maxNameSearchDepth로 제한되며, 찾지 못하면 NameDistanceUnknown입니다.
func nameDistance(node *html.Node, nameHint string) int {
	if nameHint == "" {
		return NameDistanceUnknown
	}

	distance := 0
	for ancestor := parentElement(node); ancestor != nil && distance <= maxNameSearchDepth; ancestor = parentElement(ancestor) {
		if containsWholeWord(elementText(ancestor), nameHint) {
			return distance
		}
		distance++
	}

	return NameDistanceUnknown
}

// containsKeyword 이름에 키워드 목록 중 하나가 포함되는지 여부를 반환합니다. (대소문자 구분 없음)
func containsKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// containsWholeWord haystack에 needle이 완전한 단어로 포함되는지 여부를 반환합니다.
// (대소문자 구분 없음, 양쪽 경계가 문자/숫자가 아니어야 함)
func containsWholeWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}

	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)

	for start := 0; ; {
		idx := strings.Index(h[start:], n)
		if idx < 0 {
			return false
		}
		idx += start

		left, _ := utf8.DecodeLastRuneInString(h[:idx])
		right, _ := utf8.DecodeRuneInString(h[idx+len(n):])

		boundedLeft := idx == 0 || !isWordRune(left)
		boundedRight := idx+len(n) == len(h) || !isWordRune(right)
		if boundedLeft && boundedRight {
			return true
		}

		start = idx + 1
		if start >= len(h) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
