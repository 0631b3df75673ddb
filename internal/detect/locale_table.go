package detect

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// LocaleTable 알려진 로케일들의 읽기 전용 테이블입니다.
//
// 프로세스 시작 시 한 번 생성하여 Detector에 명시적으로 전달합니다.
// 통화 기호와 ISO 코드가 여러 로케일에서 중복될 수 있으므로(예: "$", "kr"),
// 중복 시 테이블 등록 순서가 빠른 로케일이 우선합니다.
type LocaleTable struct {
	locales []*LocaleDescriptor

	bySymbol map[string]*LocaleDescriptor
	byISO    map[string]*LocaleDescriptor
	byTag    map[string]*LocaleDescriptor

	dollarReference *LocaleDescriptor
	euroReference   *LocaleDescriptor
	poundReference  *LocaleDescriptor
}

// defaultLocales 기본 제공되는 로케일 정의 목록입니다.
// 동일한 기호를 공유하는 로케일들은 더 일반적인 쪽이 앞에 위치합니다.
var defaultLocales = []LocaleDescriptor{
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "$", ISOCode: "USD", LanguageTag: "en-US"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "£", ISOCode: "GBP", LanguageTag: "en-GB"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "de-DE"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "fr-FR"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "es-ES"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "it-IT"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "nl-NL"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "fi-FI"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "el-GR"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "€", ISOCode: "EUR", LanguageTag: "pt-PT"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "₩", ISOCode: "KRW", LanguageTag: "ko-KR"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "¥", ISOCode: "JPY", LanguageTag: "ja-JP"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "元", ISOCode: "CNY", LanguageTag: "zh-CN"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "zł", ISOCode: "PLN", LanguageTag: "pl-PL"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "₽", ISOCode: "RUB", LanguageTag: "ru-RU"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "₴", ISOCode: "UAH", LanguageTag: "uk-UA"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "kr", ISOCode: "SEK", LanguageTag: "sv-SE"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "kr", ISOCode: "NOK", LanguageTag: "nb-NO"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "kr", ISOCode: "DKK", LanguageTag: "da-DK"},
	{DecimalSeparator: '.', GroupSeparator: '\'', CurrencySymbol: "CHF", ISOCode: "CHF", LanguageTag: "de-CH"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "Kč", ISOCode: "CZK", LanguageTag: "cs-CZ"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "Ft", ISOCode: "HUF", LanguageTag: "hu-HU"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "lei", ISOCode: "RON", LanguageTag: "ro-RO"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "лв", ISOCode: "BGN", LanguageTag: "bg-BG"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "₺", ISOCode: "TRY", LanguageTag: "tr-TR"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "R$", ISOCode: "BRL", LanguageTag: "pt-BR"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "$", ISOCode: "CAD", LanguageTag: "en-CA"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "$", ISOCode: "AUD", LanguageTag: "en-AU"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "$", ISOCode: "MXN", LanguageTag: "es-MX"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "₹", ISOCode: "INR", LanguageTag: "hi-IN"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "฿", ISOCode: "THB", LanguageTag: "th-TH"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "₫", ISOCode: "VND", LanguageTag: "vi-VN"},
	{DecimalSeparator: ',', GroupSeparator: '.', CurrencySymbol: "Rp", ISOCode: "IDR", LanguageTag: "id-ID"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "₪", ISOCode: "ILS", LanguageTag: "he-IL"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "R", ISOCode: "ZAR", LanguageTag: "en-ZA"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "₱", ISOCode: "PHP", LanguageTag: "fil-PH"},
	{DecimalSeparator: '.', GroupSeparator: ',', CurrencySymbol: "RM", ISOCode: "MYR", LanguageTag: "ms-MY"},
	{DecimalSeparator: ',', GroupSeparator: ' ', CurrencySymbol: "грн", ISOCode: "UAH", LanguageTag: "uk"},
}

// NewLocaleTable 기본 로케일 목록으로 새로운 LocaleTable을 생성합니다.
//
// 각 로케일 정의는 등록 전에 검증됩니다: ISO 코드가 유효한 ISO 4217 코드가 아니거나
// 언어 태그가 파싱되지 않거나 소수점/그룹 구분자가 동일하면 해당 정의는 제외됩니다.
func NewLocaleTable() *LocaleTable {
	t := &LocaleTable{
		bySymbol: make(map[string]*LocaleDescriptor),
		byISO:    make(map[string]*LocaleDescriptor),
		byTag:    make(map[string]*LocaleDescriptor),
	}

	for i := range defaultLocales {
		locale := defaultLocales[i]

		if locale.CurrencySymbol == "" || locale.DecimalSeparator == locale.GroupSeparator {
			continue
		}
		if _, err := currency.ParseISO(locale.ISOCode); err != nil {
			continue
		}
		if _, err := language.Parse(locale.LanguageTag); err != nil {
			continue
		}

		t.register(&locale)
	}

	t.dollarReference = t.byTag[normalizeTag("en-US")]
	t.euroReference = t.byTag[normalizeTag("de-DE")]
	t.poundReference = t.byTag[normalizeTag("en-GB")]

	return t
}

func (t *LocaleTable) register(locale *LocaleDescriptor) {
	t.locales = append(t.locales, locale)

	symbolKey := strings.ToLower(locale.CurrencySymbol)
	if _, exists := t.bySymbol[symbolKey]; !exists {
		t.bySymbol[symbolKey] = locale
	}

	isoKey := strings.ToLower(locale.ISOCode)
	if _, exists := t.byISO[isoKey]; !exists {
		t.byISO[isoKey] = locale
	}

	tagKey := normalizeTag(locale.LanguageTag)
	if _, exists := t.byTag[tagKey]; !exists {
		t.byTag[tagKey] = locale
	}
}

// Locales 등록된 모든 로케일을 등록 순서대로 반환합니다. 반환된 슬라이스는 수정하면 안 됩니다.
func (t *LocaleTable) Locales() []*LocaleDescriptor {
	return t.locales
}

// BySymbolOrISO 통화 기호 또는 ISO 코드로 로케일을 찾습니다. (대소문자 구분 없음)
//
// 달러/유로/파운드 기호는 여러 국가에서 공유되므로 고정된 기준 로케일
// (en-US, de-DE, en-GB)로 특별 처리한 후에 전체 테이블을 탐색합니다.
func (t *LocaleTable) BySymbolOrISO(value string) *LocaleDescriptor {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	switch value {
	case "$":
		return t.dollarReference
	case "€":
		return t.euroReference
	case "£":
		return t.poundReference
	}

	key := strings.ToLower(value)
	if locale, exists := t.bySymbol[key]; exists {
		return locale
	}
	if locale, exists := t.byISO[key]; exists {
		return locale
	}

	return nil
}

// ByLanguageTag 언어 태그로 로케일을 찾습니다. (대소문자 구분 없음)
//
// 정확히 일치하는 태그를 우선하고, 없으면 기본 언어(subtag)만 일치하는
// 첫 번째 로케일을 반환합니다. (예: "en" → en-US)
func (t *LocaleTable) ByLanguageTag(tag string) *LocaleDescriptor {
	parsed, err := language.Parse(tag)
	if err != nil {
		return nil
	}

	if locale, exists := t.byTag[normalizeTag(parsed.String())]; exists {
		return locale
	}

	base, confidence := parsed.Base()
	if confidence == language.No {
		return nil
	}
	for _, locale := range t.locales {
		localeTag, err := language.Parse(locale.LanguageTag)
		if err != nil {
			continue
		}
		if localeBase, _ := localeTag.Base(); localeBase == base {
			return locale
		}
	}

	return nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(tag)
}
