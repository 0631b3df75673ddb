package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSpaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"앞뒤 공백 제거", "  hello  ", "hello"},
		{"연속 공백 축약", "hello   world", "hello world"},
		{"탭과 개행 포함", "a\t b\n c", "a b c"},
		{"빈 문자열", "", ""},
		{"공백만 존재", "   \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeSpaces(tt.input))
		})
	}
}

func TestFormatCommas(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", FormatCommas(0))
	assert.Equal(t, "999", FormatCommas(999))
	assert.Equal(t, "1,000", FormatCommas(1000))
	assert.Equal(t, "1,234,567", FormatCommas(1234567))
	assert.Equal(t, "-1,234", FormatCommas(-1234))
}

func TestSplitAndTrim(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, SplitAndTrim("a, , b,c", ","))
	assert.Nil(t, SplitAndTrim("", ","))
	assert.Nil(t, SplitAndTrim(" , , ", ","))
}

func TestAnyContent(t *testing.T) {
	t.Parallel()

	assert.False(t, AnyContent())
	assert.False(t, AnyContent("", "  ", "\t"))
	assert.True(t, AnyContent("", "x"))
}

func TestStripHTMLTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello & World", StripHTMLTags("<b>Hello</b> &amp; World"))
	// 수학 기호는 태그로 오인하지 않아야 한다.
	assert.Equal(t, "3 < 5", StripHTMLTags("3 < 5"))
}

func TestDecodeHTMLText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"엔티티 디코딩", "1&nbsp;570&nbsp;zł", "1 570 zł"},
		{"중첩 공백 정규화", " Blue&nbsp;&nbsp;Widget ", "Blue Widget"},
		{"앰퍼샌드", "Fish &amp; Chips", "Fish & Chips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DecodeHTMLText(tt.input))
		})
	}
}
