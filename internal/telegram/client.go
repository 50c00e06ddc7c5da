// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/rugoracle/internal/models"
	"github.com/rewired-gh/rugoracle/internal/notify"
)

// StatusFunc produces the reply to the /status command.
type StatusFunc func() string

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, status StatusFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status StatusFunc) {
	if text, ok := commandReply(msg.Command(), status); ok {
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		c.bot.Send(reply) //nolint:errcheck
	}
}

func commandReply(command string, status StatusFunc) (string, bool) {
	switch command {
	case "ping":
		return "Pong", true
	case "status":
		if status == nil {
			return "No status available", true
		}
		return status(), true
	}
	return "", false
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send cancelled after %d attempt(s): %w", i+1, lastErr)
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a data source error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Signal source error*, using sample data\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Signal source recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

// Notify sends an approved signal. It satisfies notify.Sink.
func (c *Client) Notify(ctx context.Context, sig models.Signal) error {
	return c.sendMarkdownV2(ctx, formatSignal(sig))
}

var _ notify.Sink = (*Client)(nil)

// formatSignal formats an approved signal into a Telegram MarkdownV2 message.
func formatSignal(sig models.Signal) string {
	var b strings.Builder
	b.WriteString("📈 *Approved Trading Signal* 📉\n\n")
	fmt.Fprintf(&b, "*Token:* %s\n", escapeMarkdownV2(notify.TokenLabel(sig.Record.Name)))
	fmt.Fprintf(&b, "*Liquidity:* %s\n", escapeMarkdownV2("$"+notify.FormatLiquidity(sig.Record.Liquidity)))
	fmt.Fprintf(&b, "*Age:* %s hours\n", escapeMarkdownV2(notify.FormatAge(sig.Assessment.AgeHours)))
	fmt.Fprintf(&b, "*Audit:* %s\n", escapeMarkdownV2(notify.AuditLabel(sig.Record.Audit)))
	fmt.Fprintf(&b, "*Risk score:* %d\n", sig.Assessment.Score)
	b.WriteString("*Signal approved with low risk*")
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
