// Package config 애플리케이션 설정의 로드와 검증을 담당합니다.
//
// 설정은 기본값 → JSON 설정 파일 → 환경 변수(PRICEWATCH_ 접두사) 순서로
// 병합되며, 로드 직후 전체 정합성 검증을 수행합니다.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	"github.com/darkkaiser/pricewatch-server/pkg/cronx"
	"github.com/darkkaiser/pricewatch-server/pkg/validation"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// AppName 애플리케이션의 전역 고유 식별자입니다.
	AppName string = "pricewatch-server"

	// DefaultFilename 애플리케이션 초기화 시 참조하는 기본 설정 파일명입니다.
	// 실행 인자를 통해 명시적인 경로가 제공되지 않을 경우, 시스템은 이 파일을 탐색하여 구성을 로드합니다.
	DefaultFilename = AppName + ".json"

	// ------------------------------------------------------------------------------------------------
	// 기본값
	// ------------------------------------------------------------------------------------------------

	// DefaultMaxRetries HTTP 요청 실패 시 최대 재시도 횟수 기본값
	DefaultMaxRetries = 3

	// DefaultRetryDelay 재시도 사이의 대기 시간 기본값
	DefaultRetryDelay = "2s"

	// DefaultTrackInterval 상품 갱신 주기 기본값
	DefaultTrackInterval = "10m"

	// DefaultTrackJitter 갱신 주기에 더해지는 무작위 지터 폭 기본값
	DefaultTrackJitter = "1m"

	// DefaultStoragePath 추적 상품 상태 파일의 기본 저장 경로
	DefaultStoragePath = "./data/products.json"
)

// AppConfig 애플리케이션의 모든 설정을 관장하는 최상위 루트 구조체
type AppConfig struct {
	Debug     bool            `json:"debug"`
	Fetch     FetchConfig     `json:"fetch"`
	Tracking  TrackingConfig  `json:"tracking"`
	Products  []ProductConfig `json:"products" validate:"unique=URL"`
	Notifiers NotifierConfig  `json:"notifiers"`
	Storage   StorageConfig   `json:"storage"`
	WatchAPI  WatchAPIConfig  `json:"watch_api"`
}

// validate 설정 파일 로드 직후, 각 설정 항목의 정합성과 필수 값의 유효성을 검증합니다.
func (c *AppConfig) validate() error {
	if err := c.Fetch.validate(); err != nil {
		return err
	}

	if err := c.Tracking.validate(); err != nil {
		return err
	}

	if err := c.validateProducts(); err != nil {
		return err
	}

	if err := c.Notifiers.validate(); err != nil {
		return err
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	return c.WatchAPI.validate()
}

func (c *AppConfig) validateProducts() error {
	// 상품 URL 중복 검사
	if err := checkUniqueField(c.Products, "URL", "상품"); err != nil {
		return err
	}

	for _, p := range c.Products {
		if err := p.validate(); err != nil {
			return err
		}
	}

	return nil
}

// VerifyRecommendations 서비스 운영의 안정성과 보안을 위해 권장되는 설정 준수 여부를 진단합니다.
// 강제적인 에러를 발생시키지는 않으나, 잠재적 위험 요소(예: Well-known Port 사용)에 대한 경고 메시지를 반환합니다.
func (c *AppConfig) VerifyRecommendations() []string {
	var warnings []string

	warnings = append(warnings, c.WatchAPI.VerifyRecommendations()...)

	// 과도하게 짧은 갱신 주기는 대상 서버에 부담을 줍니다.
	if interval, err := time.ParseDuration(c.Tracking.Interval); err == nil && interval < time.Minute {
		warnings = append(warnings, fmt.Sprintf("상품 갱신 주기(tracking.interval)가 1분 미만으로 설정되었습니다(%s). 대상 서버에 과도한 요청이 발생할 수 있습니다", c.Tracking.Interval))
	}

	return warnings
}

// FetchConfig 상품 페이지 수집에 사용할 HTTP 클라이언트 정책을 정의하는 설정 구조체
type FetchConfig struct {
	MaxRetries        int     `json:"max_retries" validate:"min=0"`
	RetryDelay        string  `json:"retry_delay"`
	MaxBodyBytes      int64   `json:"max_body_bytes"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	RandomUserAgent   bool    `json:"random_user_agent"`
}

func (c *FetchConfig) validate() error {
	if err := validateStruct(c, "HTTP 수집(fetch)"); err != nil {
		return err
	}

	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("HTTP 재시도 대기 시간(retry_delay) 설정이 올바르지 않습니다: '%s' (예: 1s, 500ms)", c.RetryDelay))
	}

	return nil
}

// RetryDelayDuration 설정된 재시도 대기 시간을 파싱하여 반환합니다.
// validate()를 통과한 설정에서는 항상 성공합니다.
func (c *FetchConfig) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		d, _ = time.ParseDuration(DefaultRetryDelay)
	}
	return d
}

// TrackingConfig 상품 갱신 주기와 자동 재탐지 스윕 스케줄을 정의하는 설정 구조체
type TrackingConfig struct {
	// Interval 모든 상품에 공통 적용되는 기본 갱신 주기입니다. 상품별 interval로 재정의할 수 있습니다.
	Interval string `json:"interval"`

	// Jitter 갱신 주기에 더해지는 무작위 오프셋의 최대 폭입니다. (± 방향 모두)
	Jitter string `json:"jitter"`

	// AutoDetectSweep 전체 상품의 가격 위치를 주기적으로 재탐지하는 스윕 스케줄입니다.
	AutoDetectSweep struct {
		Runnable bool   `json:"runnable"`
		TimeSpec string `json:"time_spec"`
	} `json:"auto_detect_sweep"`
}

func (c *TrackingConfig) validate() error {
	if _, err := time.ParseDuration(c.Interval); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("상품 갱신 주기(tracking.interval) 설정이 올바르지 않습니다: '%s' (예: 10m, 1h)", c.Interval))
	}

	if _, err := time.ParseDuration(c.Jitter); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("갱신 지터(tracking.jitter) 설정이 올바르지 않습니다: '%s' (예: 30s, 1m)", c.Jitter))
	}

	if c.AutoDetectSweep.Runnable {
		if err := cronx.Validate(c.AutoDetectSweep.TimeSpec); err != nil {
			return apperrors.Wrap(err, apperrors.InvalidInput, "자동 재탐지 스윕(auto_detect_sweep.time_spec) 설정이 유효하지 않습니다")
		}
	}

	return nil
}

// IntervalDuration / JitterDuration 파싱된 갱신 주기/지터를 반환합니다.
func (c *TrackingConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTrackInterval)
	}
	return d
}

func (c *TrackingConfig) JitterDuration() time.Duration {
	d, err := time.ParseDuration(c.Jitter)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTrackJitter)
	}
	return d
}

// ProductConfig 기동 시점에 등록할 추적 대상 상품을 정의하는 구조체
//
// manual 항목이 없으면 기동 시 전체 자동 탐지를 수행하여 최고 점수의 가격을
// 선택합니다. manual 항목이 있으면 탐지를 생략하고 지정된 위치/로케일을
// 그대로 사용합니다.
type ProductConfig struct {
	URL string `json:"url" validate:"required,url"`

	// Interval 이 상품에만 적용되는 갱신 주기입니다. 비어있으면 tracking.interval을 따릅니다.
	Interval string `json:"interval"`

	// AutoDetect true이면 갱신 주기마다 상품명 추출을 다시 수행합니다.
	AutoDetect bool `json:"auto_detect"`

	Manual *ManualProductConfig `json:"manual"`
}

func (p *ProductConfig) validate() error {
	contextName := fmt.Sprintf("상품['%s']", p.URL)

	if err := validateStruct(p, contextName); err != nil {
		return err
	}

	if p.Interval != "" {
		if _, err := time.ParseDuration(p.Interval); err != nil {
			return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("%s의 갱신 주기(interval) 설정이 올바르지 않습니다: '%s'", contextName, p.Interval))
		}
	}

	if p.Manual != nil {
		if err := p.Manual.validate(contextName); err != nil {
			return err
		}
	}

	return nil
}

// ManualProductConfig 자동 탐지를 생략하는 상품의 수동 지정 항목입니다.
//
// 상품명, 가격 위치(selector), 로케일은 수동 모드의 필수 항목입니다.
type ManualProductConfig struct {
	Name      string `json:"name" validate:"required"`
	Selector  string `json:"selector" validate:"required"`
	Attribute string `json:"attribute"`
	JSONPath  string `json:"json_path"`

	// Locale BCP-47 언어 태그(예: ko-KR) 또는 ISO 4217 통화 코드(예: KRW)
	Locale string `json:"locale" validate:"required"`
}

func (m *ManualProductConfig) validate(contextName string) error {
	return validateStruct(m, contextName+" > 수동 지정(manual)")
}

// NotifierConfig 텔레그램 등 다양한 알림 채널을 정의하는 설정 구조체
type NotifierConfig struct {
	DefaultNotifierID string           `json:"default_notifier_id"`
	Telegrams         []TelegramConfig `json:"telegrams" validate:"unique=ID"`
}

func (c *NotifierConfig) validate() error {
	// Notifier 중복 ID 검사
	if err := checkUniqueField(c.Telegrams, "ID", "Notifier"); err != nil {
		return err
	}

	for _, telegram := range c.Telegrams {
		if err := validateStruct(telegram, fmt.Sprintf("Telegram Notifier['%s']", telegram.ID)); err != nil {
			return err
		}
	}

	// 알림 채널이 하나도 없는 구성은 허용됩니다(로그 전용). 기본 ID가 지정된 경우에만 존재를 검사합니다.
	if c.DefaultNotifierID != "" {
		var notifierIDs []string
		for _, telegram := range c.Telegrams {
			notifierIDs = append(notifierIDs, telegram.ID)
		}

		if !slices.Contains(notifierIDs, c.DefaultNotifierID) {
			return apperrors.New(apperrors.NotFound, fmt.Sprintf("기본 NotifierID('%s')가 정의된 Notifier 목록에 존재하지 않습니다", c.DefaultNotifierID))
		}
	}

	return nil
}

// TelegramConfig 텔레그램 봇 토큰 및 채팅 ID 정보를 담는 설정 구조체
type TelegramConfig struct {
	ID       string `json:"id" validate:"required"`
	BotToken string `json:"bot_token" validate:"required,telegram_bot_token"`
	ChatID   int64  `json:"chat_id" validate:"required"`
}

// StorageConfig 추적 상품 상태의 영속화 위치를 정의하는 설정 구조체
type StorageConfig struct {
	Path string `json:"path" validate:"required"`
}

func (c *StorageConfig) validate() error {
	return validateStruct(c, "저장소(storage)")
}

// WatchAPIConfig 운영 조회용 REST API 서버 설정 구조체
type WatchAPIConfig struct {
	Enabled    bool       `json:"enabled"`
	ListenPort int        `json:"listen_port" validate:"min=1,max=65535"`
	CORS       CORSConfig `json:"cors"`
}

func (c *WatchAPIConfig) validate() error {
	if !c.Enabled {
		return nil
	}

	if err := validateStruct(c, "운영 API(watch_api)"); err != nil {
		return err
	}

	return c.CORS.validate()
}

func (c *WatchAPIConfig) VerifyRecommendations() []string {
	var warnings []string

	// 시스템 예약 포트(1024 미만) 사용 경고
	if c.Enabled && c.ListenPort < 1024 {
		warnings = append(warnings, fmt.Sprintf("시스템 예약 포트(1-1023)를 사용하도록 설정되었습니다(port: %d). 이 경우 서버 구동 시 관리자 권한이 필요할 수 있습니다", c.ListenPort))
	}

	return warnings
}

// CORSConfig 웹 브라우저의 교차 출처 리소스 공유(CORS) 정책을 설정하는 구조체
type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins" validate:"dive,cors_origin"`
}

func (c *CORSConfig) validate() error {
	for _, origin := range c.AllowOrigins {
		if origin == "*" {
			if len(c.AllowOrigins) > 1 {
				return apperrors.New(apperrors.InvalidInput, "와일드카드(*)는 다른 도메인과 함께 사용할 수 없습니다. 모든 도메인을 허용하려면 와일드카드만 설정하세요")
			}
			// 와일드카드만 있는 경우는 유효함
			return nil
		}
	}

	return validateStruct(c, "CORS")
}

// Load 기본 설정 파일을 읽어 애플리케이션 설정을 로드합니다.
func Load() (*AppConfig, error) {
	return LoadWithFile(DefaultFilename)
}

// LoadWithFile 지정된 경로의 설정 파일을 읽어 AppConfig 객체를 생성합니다.
func LoadWithFile(filename string) (*AppConfig, error) {
	// 설정 파일의 존재 여부와 읽기 권한을 먼저 확인한다.
	if err := validation.ValidateFile(filename); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("설정 파일을 읽을 수 없습니다: '%s'", filename))
	}

	k := koanf.New(".")

	// 1. 기본값 로드 (가장 낮은 우선순위)
	err := k.Load(confmap.Provider(map[string]interface{}{
		"fetch.max_retries":   DefaultMaxRetries,
		"fetch.retry_delay":   DefaultRetryDelay,
		"tracking.interval":   DefaultTrackInterval,
		"tracking.jitter":     DefaultTrackJitter,
		"storage.path":        DefaultStoragePath,
		"watch_api.listen_port": 8080,
	}, "."), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "애플리케이션 기본 설정 로드에 실패했습니다")
	}

	// 2. JSON 설정 파일 로드 (기본값 덮어쓰기)
	if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("설정 파일을 찾을 수 없습니다: '%s'", filename))
		}
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일 로드 중 오류가 발생했습니다: '%s'", filename))
	}

	// 3. 환경 변수 로드 (최우선 순위, JSON 설정 덮어쓰기)
	// 접두사: PRICEWATCH_
	// 구분자: 이중 언더스코어(__)를 점(.)으로 변환 (계층 구조 표현)
	// 예: PRICEWATCH_FETCH__MAX_RETRIES -> fetch.max_retries
	if err := k.Load(env.Provider("PRICEWATCH_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PRICEWATCH_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "환경 변수 로드에 실패했습니다")
	}

	// 4. 구조체 언마샬링 (Strict Validation 적용)
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true, // 파일에 존재하지만 구조체에 없는 필드가 있을 경우 에러를 발생시킴
			WeaklyTypedInput: true,
		},
	}
	var appConfig AppConfig
	if err := k.UnmarshalWithConf("", &appConfig, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "설정 데이터를 애플리케이션 구조체로 변환하는데 실패했습니다")
	}

	// 5. 유효성 검사 수행 (정합성 체크)
	if err := appConfig.validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일('%s')의 유효성 검증에 실패했습니다", filename))
	}

	return &appConfig, nil
}
