package external

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramNotifier delivers booking notices to users who linked a
// Telegram chat.
type TelegramNotifier struct {
	bot       *bot.Bot
	directory Directory
	logger    *zap.Logger
}

func NewTelegramNotifier(token string, directory Directory, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:       b,
		directory: directory,
		logger:    logger,
	}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) error {
	contact, err := n.directory.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if contact == nil || contact.TelegramChatID == nil {
		n.logger.Debug("No telegram chat for user, skipping",
			zap.Int64("user_id", userID),
			zap.String("event", event),
		)
		return nil
	}

	_, body := renderNotice(event, payload)

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *contact.TelegramChatID,
		Text:   body,
	})
	if err != nil {
		return fmt.Errorf("send telegram message to user %d: %w", userID, err)
	}

	return nil
}
