package detect

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/darkkaiser/pricewatch-server/pkg/strutil"
)

// structuredSource 구조화 소스 하나를 정의합니다. (선택자 + 값을 읽을 속성)
type structuredSource struct {
	selector string
	attr     string
}

// leafTexts 문서의 모든 최하위 텍스트 노드의 정규화된 내용을 문서 순서대로 반환합니다.
// script/style 요소 내부의 텍스트는 표시되지 않으므로 제외합니다.
func leafTexts(doc *goquery.Document) []string {
	var texts []string
	walkTextNodes(doc, func(node *html.Node, text string) {
		texts = append(texts, text)
	})
	return texts
}

// walkTextNodes 문서의 모든 최하위 텍스트 노드를 문서 순서대로 방문합니다.
// 콜백에는 텍스트 노드와 정규화된 내용이 전달되며, 빈 텍스트는 건너뜁니다.
func walkTextNodes(doc *goquery.Document, visit func(node *html.Node, text string)) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strutil.DecodeHTMLText(n.Data); text != "" {
				visit(n, text)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	for _, root := range doc.Nodes {
		walk(root)
	}
}

// parentElement 노드의 가장 가까운 요소 조상을 반환합니다.
func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// hasHyperlinkAncestor 노드의 조상 중 하이퍼링크(<a>)가 있는지 여부를 반환합니다.
// 링크 내부의 가격은 "관련 상품" 목록일 가능성이 높으므로 후보에서 제외됩니다.
func hasHyperlinkAncestor(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "a" {
			return true
		}
	}
	return false
}

// elementText 요소 서브트리의 전체 텍스트를 정규화하여 반환합니다.
func elementText(n *html.Node) string {
	var b strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte(' ')
			return
		}
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style":
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return strutil.DecodeHTMLText(b.String())
}

// nodeSelectorPath 노드의 루트로부터의 CSS 선택자 경로를 계산합니다.
// (예: "html > body > div:nth-child(2) > span:nth-child(1)")
//
// 경로 계산은 비용이 들기 때문에 스코어링에서 살아남은 대표 후보에 대해서만 호출됩니다.
func nodeSelectorPath(n *html.Node) string {
	if n == nil {
		return ""
	}

	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentElement(cur) {
		parent := parentElement(cur)
		if parent == nil {
			// 루트 요소(html)는 위치 지정 없이 태그 이름만 사용합니다.
			segments = append(segments, cur.Data)
			break
		}

		index := 1
		for sibling := parent.FirstChild; sibling != nil; sibling = sibling.NextSibling {
			if sibling == cur {
				break
			}
			if sibling.Type == html.ElementNode {
				index++
			}
		}
		segments = append(segments, fmt.Sprintf("%s:nth-child(%d)", cur.Data, index))
	}

	// 루트부터의 경로가 되도록 역순으로 뒤집습니다.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	return strings.Join(segments, " > ")
}

// candidateNode 후보의 위치 계산에 사용할 요소 노드를 반환합니다.
// 텍스트 노드 후보는 부모 요소가 위치 기준이 됩니다.
func candidateNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.TextNode {
		return parentElement(n)
	}
	return n
}
