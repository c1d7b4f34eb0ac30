package services

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hospitalrecords/internal/models"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends codes to the chat linked to the account.
type TelegramNotifier struct {
	bot telegramSender
}

// NewTelegramNotifier authenticates the bot token against the Bot API.
func NewTelegramNotifier(botToken string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

func (n *TelegramNotifier) Channel() string { return "telegram" }

func (n *TelegramNotifier) Address(a *models.Account) string {
	if a.TelegramChatID == 0 {
		return ""
	}
	return strconv.FormatInt(a.TelegramChatID, 10)
}

func (n *TelegramNotifier) SendCode(_ context.Context, address, code string) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: telegram: bad chat id %q", ErrNotificationDelivery, address)
	}
	msg := tgbotapi.NewMessage(chatID, codeMessage(code))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("%w: telegram: %v", ErrNotificationDelivery, err)
	}
	return nil
}
