package detect

import (
	"strings"
	"unicode"

	"github.com/darkkaiser/pricewatch-server/pkg/strutil"
)

const (
	// maxIntegerDigits 정수부에 허용되는 최대 자릿수입니다. (int64 센트 오버플로 방지)
	maxIntegerDigits = 15

	// maxSymbolLength 통화 기호 후보로 인정되는 최대 문자 수입니다.
	maxSymbolLength = 10
)

// isSeparator 숫자 코어 내에서 허용되는 구분 문자(쉼표, 마침표, 공백)인지 여부를 반환합니다.
func isSeparator(r rune) bool {
	return r == ',' || r == '.' || r == ' '
}

// ParsePrice 텍스트 조각 하나를 지정된 로케일 규칙으로 파싱합니다.
//
// 이 함수는 순수 함수이며 잘못된 입력에 대해 에러를 반환하지 않고
// Valid=false인 결과를 반환합니다. 반환값의 NormalizedText를 다시 파싱하면
// 항상 동일한 Amount가 나옵니다.
//
// 파싱 절차:
//  1. HTML 엔티티 디코딩과 공백 정리 후, 첫 숫자와 마지막 숫자 사이의 구간을
//     숫자 코어로 추출합니다. 코어 바깥은 통화 기호 탐색 대상입니다.
//  2. 코어를 구분 문자(쉼표/마침표/공백)로 분할합니다. 코어에 존재하는 구분
//     문자가 전부 공백이면 소수부 없는 그룹 구분으로 간주합니다. ("1 570" → 1570)
//  3. 그 외에는 마지막 구분 문자 위치가 소수점 경계가 됩니다. ("1,570.00" → 1570.00)
//  4. 코어 바깥의 나머지 텍스트에서 알려진 통화 기호를 탐색하여 첨부합니다.
func (t *LocaleTable) ParsePrice(text string, locale *LocaleDescriptor) ParsedPrice {
	result := ParsedPrice{
		OriginalText:   text,
		NormalizedText: strutil.DecodeHTMLText(text),
	}
	if result.NormalizedText == "" || locale == nil {
		return result
	}

	normalized := result.NormalizedText

	firstDigit := strings.IndexFunc(normalized, unicode.IsDigit)
	if firstDigit < 0 {
		return result
	}
	lastDigit := strings.LastIndexFunc(normalized, unicode.IsDigit)

	// 숫자 코어: 첫 숫자부터 마지막 숫자까지 (숫자는 ASCII이므로 바이트 슬라이싱이 안전함)
	core := normalized[firstDigit : lastDigit+1]
	remainder := normalized[:firstDigit] + " " + normalized[lastDigit+1:]

	amount, parsed := parseNumericCore(core)
	if parsed {
		result.Amount = amount
		result.Valid = amount > 0
	}

	if symbol := t.findCurrencySymbol(remainder); symbol != "" {
		result.CurrencySymbol = symbol
	}

	return result
}

// parseNumericCore 숫자 코어를 고정 소수점 금액(센트)으로 변환합니다.
func parseNumericCore(core string) (int64, bool) {
	var pieces []string
	var separators []rune

	var piece strings.Builder
	for _, r := range core {
		switch {
		case unicode.IsDigit(r):
			piece.WriteRune(r)
		case isSeparator(r):
			separators = append(separators, r)
			if piece.Len() > 0 {
				pieces = append(pieces, piece.String())
				piece.Reset()
			}
		default:
			// 구분 문자도 숫자도 아닌 문자가 코어에 섞여 있으면 가격이 아닙니다.
			return 0, false
		}
	}
	if piece.Len() > 0 {
		pieces = append(pieces, piece.String())
	}
	if len(pieces) == 0 {
		return 0, false
	}

	// 코어의 구분 문자가 전부 공백이면 그룹 구분만 있는 정수입니다.
	// ("1 570", "10 123 456" 같은 패턴을 1.57로 잘못 읽는 것을 방지)
	if len(separators) > 0 && allSpaceSeparators(separators) {
		return assembleCents(strings.Join(pieces, ""), "")
	}

	// 마지막 구분 문자 위치가 소수점 경계입니다.
	if len(separators) > 0 && len(pieces) > 1 {
		integerDigits := strings.Join(pieces[:len(pieces)-1], "")
		fractionDigits := pieces[len(pieces)-1]
		return assembleCents(integerDigits, fractionDigits)
	}

	return assembleCents(pieces[0], "")
}

func allSpaceSeparators(separators []rune) bool {
	for _, r := range separators {
		if r != ' ' {
			return false
		}
	}
	return true
}

// assembleCents 정수부/소수부 숫자 문자열을 센트 단위 금액으로 조립합니다.
// 소수부는 앞 두 자리만 사용합니다. (세 번째 자리 이하 버림)
func assembleCents(integerDigits, fractionDigits string) (int64, bool) {
	if integerDigits == "" || len(integerDigits) > maxIntegerDigits {
		return 0, false
	}

	var amount int64
	for _, r := range integerDigits {
		amount = amount*10 + int64(r-'0')
	}
	amount *= 100

	if len(fractionDigits) > 2 {
		fractionDigits = fractionDigits[:2]
	}
	switch len(fractionDigits) {
	case 1:
		amount += int64(fractionDigits[0]-'0') * 10
	case 2:
		amount += int64(fractionDigits[0]-'0')*10 + int64(fractionDigits[1]-'0')
	}

	return amount, true
}

// findCurrencySymbol 숫자 코어 바깥의 나머지 텍스트에서 알려진 통화 기호를 찾습니다.
//
// 로케일 결정의 기호 투표와 동일한 숫자 제거 기법을 사용합니다:
// 숫자/구분 문자/공백을 모두 제거한 나머지가 알려진 로케일의 기호 또는
// ISO 코드와 일치하면 그 문자열을 반환합니다.
func (t *LocaleTable) findCurrencySymbol(remainder string) string {
	trimmed := trimToSymbol(remainder)
	if trimmed == "" || len([]rune(trimmed)) > maxSymbolLength {
		return ""
	}

	if t.BySymbolOrISO(trimmed) != nil {
		return trimmed
	}

	return ""
}

// trimToSymbol 텍스트에서 숫자, 구분 문자, 공백을 모두 제거합니다.
func trimToSymbol(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || unicode.IsSpace(r) || r == ',' || r == '.' {
			return -1
		}
		return r
	}, text)
}
