package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	apperrors "github.com/darkkaiser/pricewatch-server/internal/pkg/errors"
	"github.com/darkkaiser/pricewatch-server/internal/pkg/mark"
	applog "github.com/darkkaiser/pricewatch-server/pkg/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageMaxLength 텔레그램 Bot API가 허용하는 단일 메시지의 최대 길이(바이트)입니다.
// 이를 초과하는 메시지는 400 Bad Request로 거부되므로 분할 전송합니다.
const messageMaxLength = 4096

// botSender 텔레그램 메시지 전송 최소 인터페이스입니다. 테스트에서 실제 API 호출을 대체합니다.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender 텔레그램 봇을 통해 알림을 전송하는 Sender 구현체입니다.
type TelegramSender struct {
	id     string
	chatID int64
	bot    botSender
}

var _ Sender = (*TelegramSender)(nil)

// NewTelegramSender 텔레그램 Sender를 생성합니다. 봇 토큰 인증에 실패하면 에러를 반환합니다.
func NewTelegramSender(id, botToken string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "텔레그램 봇 인증에 실패했습니다. (Notifier ID: %s)", id)
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id": id,
		"bot_name":    bot.Self.UserName,
	}).Info("텔레그램 봇 인증 완료")

	return &TelegramSender{
		id:     id,
		chatID: chatID,
		bot:    bot,
	}, nil
}

// ID 알림 채널의 식별자를 반환합니다.
func (s *TelegramSender) ID() string {
	return s.id
}

// Notify 이벤트를 텔레그램 메시지로 변환하여 전송합니다.
func (s *TelegramSender) Notify(ctx context.Context, event Event) error {
	message := buildMessage(event)

	for _, chunk := range splitMessage(message, messageMaxLength) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg := tgbotapi.NewMessage(s.chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := s.bot.Send(msg); err != nil {
			return apperrors.Wrapf(err, apperrors.ExecutionFailed, "텔레그램 메시지 전송에 실패했습니다. (Notifier ID: %s)", s.id)
		}
	}

	return nil
}

// buildMessage 이벤트를 텔레그램 HTML 서식의 본문으로 변환합니다.
//
// 상품명과 메시지는 외부 페이지에서 수집된 값이므로 HTML 이스케이프를 거칩니다.
func buildMessage(event Event) string {
	var sb strings.Builder

	if event.ErrorOccurred {
		sb.WriteString(mark.Alert.String() + " ")
	} else if event.Kind == EventPriceChanged {
		sb.WriteString(mark.PriceChanged.String() + " ")
	}

	if event.ProductName != "" {
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(event.ProductName)))
	}

	sb.WriteString(html.EscapeString(event.Message))

	if event.URL != "" {
		sb.WriteString(fmt.Sprintf("\n\n%s", html.EscapeString(event.URL)))
	}

	return sb.String()
}

// splitMessage 메시지를 최대 길이 이하의 청크로 분할합니다.
//
// 가능한 한 줄바꿈 단위로 나누며, 한 줄이 최대 길이를 초과하는 경우에만
// UTF-8 문자 경계를 존중하여 강제 분할합니다.
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	var sb strings.Builder

	flush := func() {
		if sb.Len() > 0 {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
	}

	for _, line := range strings.Split(message, "\n") {
		neededSpace := len(line)
		if sb.Len() > 0 {
			neededSpace++
		}

		if sb.Len()+neededSpace > maxLength {
			flush()

			// 한 줄 자체가 최대 길이를 초과하면 문자 경계에서 강제 분할합니다.
			for len(line) > maxLength {
				cut := maxLength
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				chunks = append(chunks, line[:cut])
				line = line[cut:]
			}
		}

		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	flush()

	return chunks
}
