package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/darkkaiser/pricewatch-server/pkg/strutil"
)

// maxTitleFragmentLength 상품명 후보로 수집되는 텍스트 조각의 최대 길이입니다. (룬 기준)
const maxTitleFragmentLength = 100

// ogTitleSelector 신뢰하는 제목 소스입니다. og:title이 <title>보다 우선합니다.
const ogTitleSelector = `meta[property="og:title"]`

// ExtractName 페이지 제목과 본문에 반복되는 짧은 텍스트 조각을 교차 검증하여
// 상품의 표시 이름을 추출합니다. 찾지 못하면 빈 문자열을 반환합니다.
//
// 쇼핑몰의 페이지 제목은 보통 "상품명, 쇼핑몰이름" 또는 "상품명 | 카테고리" 형태이므로,
// 제목을 토큰 단위로 뒤에서부터 줄여가며 본문에 가장 자주 등장하는 접두 부분을 찾습니다.
// 탐색은 전체 길이에서 시작해 줄어들기 때문에, 출현 횟수가 같으면 더 긴 후보가
// 유지됩니다. 이 편향은 의도된 것으로, 더 완전한 제목 문자열을 선호합니다.
func (d *Detector) ExtractName(doc *goquery.Document) string {
	title := d.pageTitle(doc)
	if title == "" {
		return ""
	}

	fragmentCounts := collectShortFragments(doc)

	tokens := strings.Fields(title)
	bestName := title
	bestCount := 0

	for n := len(tokens); n >= 1; n-- {
		candidate := stripTrailingPunct(strings.Join(tokens[:n], " "))
		if candidate == "" {
			continue
		}

		count := fragmentCounts[strings.ToLower(candidate)]
		if count > bestCount {
			bestCount = count
			bestName = candidate
		}
	}

	// 어떤 조각도 본문에 등장하지 않으면 원래 제목이 그대로 유지됩니다.
	return bestName
}

// pageTitle 신뢰하는 제목 소스에서 첫 번째 비어있지 않은 값을 읽습니다.
func (d *Detector) pageTitle(doc *goquery.Document) string {
	if content, exists := doc.Find(ogTitleSelector).First().Attr("content"); exists {
		if title := strutil.DecodeHTMLText(content); title != "" {
			return title
		}
	}

	return strutil.DecodeHTMLText(doc.Find("title").First().Text())
}

// collectShortFragments 본문의 짧은 최하위 텍스트 조각들의 출현 횟수를 수집합니다.
// <head> 내부의 텍스트(제목 자신 등)는 제외합니다.
func collectShortFragments(doc *goquery.Document) map[string]int {
	counts := make(map[string]int)

	walkTextNodes(doc, func(node *html.Node, text string) {
		if hasHeadAncestor(node) {
			return
		}
		if len([]rune(text)) > maxTitleFragmentLength {
			return
		}

		fragment := stripTrailingPunct(text)
		if fragment == "" {
			return
		}
		counts[strings.ToLower(fragment)]++
	})

	return counts
}

func hasHeadAncestor(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "head" {
			return true
		}
	}
	return false
}

// stripTrailingPunct 말미의 쉼표/마침표와 공백을 제거합니다.
func stripTrailingPunct(text string) string {
	return strings.TrimRight(text, ",. ")
}
