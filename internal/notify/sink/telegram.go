package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"tasknag/internal/notify"
	"tasknag/pkg/logx"
)

// Telegram delivers notifications as messages to a single chat. The bot is
// send-only; it never polls for updates.
type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  logx.Logger
}

func NewTelegram(token string, chatID int64, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{bot: b, chat: tele.ChatID(chatID), log: log}, nil
}

func (t *Telegram) Send(ctx context.Context, p notify.Payload) error {
	text := p.Title
	if p.Body != "" {
		text = fmt.Sprintf("*%s*\n%s", escapeMarkdown(p.Title), escapeMarkdown(p.Body))
	}
	_, err := t.bot.Send(t.chat, text, tele.ModeMarkdownV2)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("notification sent to telegram", logx.Int64("task_id", p.TaskID))
	return nil
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(s string) string {
	const reserved = `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
