package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/pricewatch-server/internal/detect"
)

func mustLocale(t *testing.T, table *detect.LocaleTable, symbolOrISO string) *detect.LocaleDescriptor {
	t.Helper()

	locale := table.BySymbolOrISO(symbolOrISO)
	require.NotNil(t, locale)
	return locale
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	table := detect.NewLocaleTable()

	tests := []struct {
		name       string
		text       string
		locale     string // BySymbolOrISO 조회 키
		wantAmount int64  // 센트 단위
		wantSymbol string
		wantValid  bool
	}{
		{
			// 공백 그룹 구분은 소수부가 아닌 정수 그룹으로 읽어야 한다.
			name:       "공백 그룹 구분 정수",
			text:       "1 570 zł",
			locale:     "PLN",
			wantAmount: 157000,
			wantSymbol: "zł",
			wantValid:  true,
		},
		{
			name:       "공백 그룹 구분 큰 정수",
			text:       "10 123 456 zł",
			locale:     "PLN",
			wantAmount: 1012345600,
			wantSymbol: "zł",
			wantValid:  true,
		},
		{
			name:       "달러 소수점",
			text:       "$19.99",
			locale:     "USD",
			wantAmount: 1999,
			wantSymbol: "$",
			wantValid:  true,
		},
		{
			name:       "쉼표 소수점",
			text:       "49,90",
			locale:     "EUR",
			wantAmount: 4990,
			wantValid:  true,
		},
		{
			name:       "그룹과 소수점 혼합",
			text:       "1,570.00",
			locale:     "USD",
			wantAmount: 157000,
			wantValid:  true,
		},
		{
			name:       "유로 독일식 표기",
			text:       "1.299,95 €",
			locale:     "EUR",
			wantAmount: 129995,
			wantSymbol: "€",
			wantValid:  true,
		},
		{
			name:       "ISO 코드 접미사",
			text:       "299.00 USD",
			locale:     "USD",
			wantAmount: 29900,
			wantSymbol: "USD",
			wantValid:  true,
		},
		{
			name:       "HTML 엔티티 디코딩",
			text:       "19.99&nbsp;&euro;",
			locale:     "EUR",
			wantAmount: 1999,
			wantSymbol: "€",
			wantValid:  true,
		},
		{
			name:      "빈 입력",
			text:      "",
			locale:    "USD",
			wantValid: false,
		},
		{
			name:      "공백만 있는 입력",
			text:      "   ",
			locale:    "USD",
			wantValid: false,
		},
		{
			name:      "숫자 없는 입력",
			text:      "품절되었습니다",
			locale:    "USD",
			wantValid: false,
		},
		{
			name:      "0원은 유효한 가격이 아님",
			text:      "0.00",
			locale:    "USD",
			wantValid: false,
		},
		{
			name:      "숫자 코어에 섞인 문자",
			text:      "전화번호 02-1234-5678",
			locale:    "USD",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed := table.ParsePrice(tt.text, mustLocale(t, table, tt.locale))

			assert.Equal(t, tt.wantValid, parsed.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.wantAmount, parsed.Amount)
				assert.Equal(t, tt.wantSymbol, parsed.CurrencySymbol)
			}
		})
	}
}

// 파싱 결과의 NormalizedText를 다시 파싱하면 항상 동일한 금액이 나와야 한다.
func TestParsePrice_Idempotent(t *testing.T) {
	t.Parallel()

	table := detect.NewLocaleTable()

	inputs := []struct {
		text   string
		locale string
	}{
		{"1 570 zł", "PLN"},
		{"$19.99", "USD"},
		{"1,299.95", "USD"},
		{"49,90 €", "EUR"},
		{"299.00 USD", "USD"},
		{"  12  900  ", "KRW"},
	}

	for _, input := range inputs {
		locale := mustLocale(t, table, input.locale)

		first := table.ParsePrice(input.text, locale)
		second := table.ParsePrice(first.NormalizedText, locale)

		assert.Equal(t, first.Amount, second.Amount, "입력: %q", input.text)
		assert.Equal(t, first.Valid, second.Valid, "입력: %q", input.text)
	}
}

func TestParsePrice_NilLocale(t *testing.T) {
	t.Parallel()

	table := detect.NewLocaleTable()

	parsed := table.ParsePrice("19.99", nil)
	assert.False(t, parsed.Valid)
}
