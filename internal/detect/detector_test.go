package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
)

func newTestDetector() *detect.Detector {
	return detect.NewDetector(detect.NewLocaleTable())
}

// 구조화 메타 소스는 권위 있는 소스이므로, 표시 텍스트의 상충하는 가격보다 우선한다.
func TestDetect_StructuredSourceShortCircuit(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html>
		<head>
			<title>Rote Taschenlampe, Shop.de</title>
			<meta property="og:price:amount" content="49,90">
			<meta property="og:price:currency" content="EUR">
		</head>
		<body>
			<h1>Rote Taschenlampe</h1>
			<span class="old-price">99,90 €</span>
		</body>
	</html>`)

	result, err := newTestDetector().Detect(doc)
	require.NoError(t, err)

	best := result.BestPrice()
	require.NotNil(t, best)
	assert.Equal(t, int64(4990), best.Parsed.Amount)
	assert.Equal(t, detect.SourceMetaOrStructured, best.Kind)
	assert.Equal(t, "de-DE", result.Locale.LanguageTag)
}

// 페이지 제목에서 본문에 자주 반복되는 접두 부분이 상품명으로 선택된다.
func TestDetect_NameFromRepeatedFragments(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html>
		<head><title>Blue Widget, ShopName.com</title></head>
		<body>
			<h1>Blue Widget</h1>
			<div>Blue Widget</div>
			<p>Blue Widget</p>
			<span>Blue Widget</span>
			<li>Blue Widget</li>
			<footer>Blue Widget, ShopName.com</footer>
			<span class="price">$19.99</span>
		</body>
	</html>`)

	result, err := newTestDetector().Detect(doc)
	require.NoError(t, err)

	assert.Equal(t, "Blue Widget", result.Name)
}

func TestDetect_VisibleTextCandidates(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html>
		<head><title>무선 청소기</title></head>
		<body>
			<h1>무선 청소기</h1>
			<div class="purchase"><span>1 570 zł</span></div>
			<div class="related">
				<a href="/other"><span>99 zł</span></a>
			</div>
		</body>
	</html>`)

	result, err := newTestDetector().Detect(doc)
	require.NoError(t, err)

	// 하이퍼링크 내부의 관련 상품 가격은 후보에서 제외된다.
	require.Len(t, result.Prices, 1)
	assert.Equal(t, int64(157000), result.BestPrice().Parsed.Amount)
	assert.Equal(t, detect.SourceVisibleText, result.BestPrice().Kind)
}

func TestDetect_LocaleNotFound(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html><head><title>상품</title></head><body><p>통화 단서 없음</p></body></html>`)

	_, err := newTestDetector().Detect(doc)
	require.Error(t, err)
	assert.Equal(t, detect.ErrorKindLocaleNotFound, detect.KindOf(err))
}

func TestDetect_PriceNotFound(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html lang="ko-KR"><head><title>상품 안내</title></head><body><p>가격 문의</p></body></html>`)

	_, err := newTestDetector().Detect(doc)
	require.Error(t, err)
	assert.Equal(t, detect.ErrorKindPriceNotFound, detect.KindOf(err))
}

// 탐지에서 선택된 위치 참조는 같은 문서에서 다시 찾았을 때 동일한 금액을 읽어야 한다.
func TestReadLocation_RoundTrip(t *testing.T) {
	t.Parallel()

	detector := newTestDetector()

	doc := mustDocument(t, `<html>
		<head><title>무선 키보드</title></head>
		<body>
			<h1>무선 키보드</h1>
			<div><span class="price">$49.99</span></div>
		</body>
	</html>`)

	result, err := detector.Detect(doc)
	require.NoError(t, err)

	best := result.BestPrice()
	require.NotNil(t, best.Location)
	require.NotEmpty(t, best.Location.Selector)

	text, found := detect.ReadLocation(doc, best.Location)
	require.True(t, found)

	reparsed := detector.Table().ParsePrice(text, result.Locale)
	require.True(t, reparsed.Valid)
	assert.Equal(t, best.Parsed.Amount, reparsed.Amount)
}

func TestReadLocation_Missing(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, `<html><body><div>본문</div></body></html>`)

	_, found := detect.ReadLocation(doc, &detect.Location{Selector: "html > body > span:nth-child(9)"})
	assert.False(t, found)

	_, found = detect.ReadLocation(doc, nil)
	assert.False(t, found)
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	assert.True(t, detect.ErrorKindFetchFailed.Recoverable())
	assert.True(t, detect.ErrorKindPriceNotFound.Recoverable())
	assert.False(t, detect.ErrorKindTrackingFault.Recoverable())
	assert.False(t, detect.ErrorKindLocaleNotFound.Recoverable())

	assert.Equal(t, "price_not_found", detect.ErrorKindPriceNotFound.String())
	assert.Equal(t, detect.ErrorKindNone, detect.KindOf(nil))
	assert.Equal(t, detect.ErrorKindTrackingFault, detect.KindOf(assert.AnError))
}
