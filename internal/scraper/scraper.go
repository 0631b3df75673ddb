// Package scraper 상품 페이지를 내려받아 goquery 문서로 파싱하는 계층을 제공합니다.
//
// Fetcher 체인을 통해 HTML을 가져오고, 응답 헤더와 본문 앞부분을 기반으로
// 문자 인코딩을 감지하여 UTF-8로 변환한 후 파싱합니다. (예: EUC-KR 쇼핑몰 페이지)
package scraper

import (
	"bufio"
	"context"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/darkkaiser/pricewatch-server/internal/fetcher"
	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
)

// component 로깅용 컴포넌트 이름
const component = "scraper"

// Page 내려받아 파싱이 완료된 상품 페이지입니다.
type Page struct {
	// Document 파싱된 HTML 문서입니다. 상대 경로 해석을 위해 Url 필드가 설정됩니다.
	Document *goquery.Document

	// StatusCode 최종 응답의 HTTP 상태 코드입니다.
	StatusCode int

	// FinalURL 리다이렉트가 모두 처리된 후의 최종 URL입니다.
	FinalURL string

	// Redirected 요청 URL과 최종 URL이 다른지 여부입니다.
	// 상품 페이지가 품절/삭제되어 목록 페이지로 돌려보내는 쇼핑몰을 감지하는 데 사용됩니다.
	Redirected bool
}

// Loader URL로부터 상품 페이지를 읽어들이는 인터페이스입니다.
// 추적 엔진은 이 인터페이스에만 의존하므로 테스트에서 가짜 구현으로 대체할 수 있습니다.
type Loader interface {
	Load(ctx context.Context, urlStr string) (*Page, error)
}

// Scraper Fetcher 체인을 사용하는 기본 Loader 구현체입니다.
type Scraper struct {
	fetcher fetcher.Fetcher
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Loader = (*Scraper)(nil)

// New 새로운 Scraper 인스턴스를 생성합니다.
func New(f fetcher.Fetcher) *Scraper {
	return &Scraper{fetcher: f}
}

// Load 지정된 URL의 상품 페이지를 내려받아 파싱합니다.
//
// 2xx 범위를 벗어난 응답은 Fetcher 체인에서 에러로 변환되므로 여기에 도달하지 않습니다.
// 리다이렉트는 에러가 아니며, Page.Redirected로 보고되어 호출자가 판단합니다.
func (s *Scraper) Load(ctx context.Context, urlStr string) (*Page, error) {
	resp, err := fetcher.Get(ctx, s.fetcher, urlStr)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "상품 페이지 요청이 실패하였습니다. (URL: %s)", urlStr)
	}
	defer resp.Body.Close()

	// 리다이렉트 후의 최종 URL을 기준 URL로 사용합니다.
	finalURL := urlStr
	var baseURL *url.URL
	if resp.Request != nil && resp.Request.URL != nil {
		baseURL = resp.Request.URL
		finalURL = baseURL.String()
	} else if parsedURL, parseErr := url.Parse(urlStr); parseErr == nil {
		baseURL = parsedURL
	}

	doc, err := parseHTML(resp.Body, baseURL, resp.Header.Get("Content-Type"))
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"url":         urlStr,
			"status_code": resp.StatusCode,
		}).WithError(err).Error("HTML 파싱 실패")

		return nil, apperrors.Wrapf(err, apperrors.ParsingFailed, "상품 페이지의 HTML 파싱이 실패하였습니다. (URL: %s)", urlStr)
	}

	page := &Page{
		Document:   doc,
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Redirected: isRedirected(urlStr, finalURL),
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"url":         urlStr,
		"final_url":   finalURL,
		"status_code": resp.StatusCode,
		"redirected":  page.Redirected,
	}).Debug("상품 페이지 로드 완료")

	return page, nil
}

// Parse 이미 메모리에 있는 HTML 데이터를 파싱하여 Page를 생성합니다.
// baseURLStr은 상대 경로 해석에 사용되며 빈 문자열일 수 있습니다.
func Parse(r io.Reader, baseURLStr string) (*Page, error) {
	var baseURL *url.URL
	if baseURLStr != "" {
		if parsedURL, err := url.Parse(baseURLStr); err == nil {
			baseURL = parsedURL
		}
	}

	doc, err := parseHTML(r, baseURL, "")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ParsingFailed, "HTML 데이터 파싱이 실패하였습니다.")
	}

	return &Page{
		Document:   doc,
		StatusCode: 0,
		FinalURL:   baseURLStr,
	}, nil
}

// parseHTML 응답 본문을 UTF-8로 변환한 후 goquery 문서를 생성합니다.
//
// 인코딩은 Content-Type 헤더와 본문 앞부분(1KB)의 메타 정보를 함께 사용하여 감지합니다.
// 감지에 실패하면 UTF-8로 가정하고 원본 그대로 파싱합니다.
func parseHTML(r io.Reader, baseURL *url.URL, contentType string) (*goquery.Document, error) {
	bufReader := bufio.NewReader(r)

	const peekSize = 1024
	peekBytes, _ := bufReader.Peek(peekSize) // EOF가 발생해도 읽은 만큼 반환됨

	var utf8Reader io.Reader = bufReader
	if e, _, _ := charset.DetermineEncoding(peekBytes, contentType); e != nil {
		utf8Reader = e.NewDecoder().Reader(bufReader)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, err
	}

	if baseURL != nil {
		doc.Url = baseURL
	}

	return doc, nil
}

// isRedirected 요청 URL과 최종 URL이 실질적으로 다른 위치인지 판별합니다.
// 스킴 변경(http → https)과 말미 슬래시 차이는 리다이렉트로 간주하지 않습니다.
func isRedirected(requestedURL, finalURL string) bool {
	reqURL, err := url.Parse(requestedURL)
	if err != nil {
		return requestedURL != finalURL
	}
	finURL, err := url.Parse(finalURL)
	if err != nil {
		return requestedURL != finalURL
	}

	normalize := func(u *url.URL) string {
		path := u.Path
		if path == "" {
			path = "/"
		}
		if len(path) > 1 && path[len(path)-1] == '/' {
			path = path[:len(path)-1]
		}
		return u.Host + path + "?" + u.RawQuery
	}

	return normalize(reqURL) != normalize(finURL)
}
