package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramPoster posts booking summaries to a staff chat.
type TelegramPoster struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramPoster connects to the Bot API with token.
func NewTelegramPoster(token string, chatID int64) (*TelegramPoster, error) {
	return NewTelegramPosterWithClient(token, tgbotapi.APIEndpoint, &http.Client{}, chatID)
}

// NewTelegramPosterWithClient connects through a custom endpoint and client.
func NewTelegramPosterWithClient(token, endpoint string, client *http.Client, chatID int64) (*TelegramPoster, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return &TelegramPoster{bot: bot, chatID: chatID}, nil
}

// BotName returns the authenticated bot's username.
func (p *TelegramPoster) BotName() string {
	return p.bot.Self.UserName
}

// Post implements ChatPoster.
func (p *TelegramPoster) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(p.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var _ ChatPoster = (*TelegramPoster)(nil)
