package notify

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramSender delivers alerts to a single chat. The bot is send-only;
// no poller runs.
type TelegramSender struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram channel needs token and chat_id")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: b, chatID: chatID}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(_ context.Context, a Alert) error {
	text := a.Body
	if text == "" {
		text = fmt.Sprintf("%s dropped to %.2f (target %.2f)", a.Title, a.Price, a.Target)
	}
	_, err := s.bot.Send(&tele.Chat{ID: s.chatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}
