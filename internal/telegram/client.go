// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/marketsentry/internal/logger"
	"github.com/rewired-gh/marketsentry/internal/models"
)

// MaxMessageLength is the default chunk size in characters. Telegram's
// hard limit is 4096; the margin leaves room for entity expansion.
const MaxMessageLength = 4000

// LongPollTimeout is how long getUpdates waits on the server. The HTTP
// timeout must exceed it.
const LongPollTimeout = 60 * time.Second

// DefaultTimeout bounds every Bot API request.
const DefaultTimeout = 75 * time.Second

// sender is the subset of the bot API used for outgoing messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	api            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	timeout        time.Duration
	maxLength      int
}

// NewClient creates a new Telegram client. Every Bot API request is bounded
// by timeout; timeout <= 0 uses DefaultTimeout.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase, timeout time.Duration) (*Client, error) {
	return newClientWithEndpoint(botToken, tgbotapi.APIEndpoint, chatID, maxRetries, retryDelayBase, timeout)
}

func newClientWithEndpoint(botToken, endpoint, chatID string, maxRetries int, retryDelayBase, timeout time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := newClient(bot, chatIDInt, maxRetries, retryDelayBase)
	c.api = bot
	c.timeout = timeout
	return c, nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		timeout:        DefaultTimeout,
		maxLength:      MaxMessageLength,
	}
}

// SetMaxMessageLength overrides the chunk size used by SendReport.
func (c *Client) SetMaxMessageLength(n int) {
	if n > 0 {
		c.maxLength = n
	}
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
// status renders the reply to /status.
func (c *Client) ListenForCommands(ctx context.Context, status func() string) {
	if c.api == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(LongPollTimeout / time.Second)
	updates := c.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
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

func (c *Client) handleCommand(msg *tgbotapi.Message, status func() string) {
	if msg.Chat == nil || msg.Chat.ID != c.chatID {
		logger.Debug("Ignoring /%s from chat outside the configured one", msg.Command())
		return
	}
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		text = "No status available"
		if status != nil {
			text = status()
		}
	default:
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

// send delivers one Chattable with linear-backoff retry. It returns once ctx
// is done even if a request is still in flight.
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := c.sendOnce(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("telegram send aborted: %w", ctx.Err())
		}
		lastErr = err
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram send aborted: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// sendOnce runs one request. The bot API takes no context, so the request
// goroutine is left to the HTTP client timeout when ctx ends first.
func (c *Client) sendOnce(ctx context.Context, msg tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
// The whole exchange, retries included, is bounded by the client timeout.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.send(ctx, msg)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendReport sends the chart (if any) and then the report text in order.
// A failed chart upload is logged and does not stop the text.
func (c *Client) SendReport(ctx context.Context, report models.Report) error {
	if len(report.Chart) > 0 {
		photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FileBytes{
			Name:  report.Symbol + ".png",
			Bytes: report.Chart,
		})
		photo.Caption = fmt.Sprintf("%s (%s) %s", report.Asset, report.Symbol, report.Time.UTC().Format("2006-01-02 15:04 MST"))
		if err := c.send(ctx, photo); err != nil {
			logger.Warn("Failed to send chart for %s: %v", report.Symbol, err)
		}
	}

	chunks := SplitMessage(FormatReport(report), c.maxLength)
	for i, chunk := range chunks {
		if err := c.send(ctx, tgbotapi.NewMessage(c.chatID, chunk)); err != nil {
			return fmt.Errorf("failed to send report part %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// FormatReport renders a report as plain text.
func FormatReport(r models.Report) string {
	var b strings.Builder

	if r.Emergency {
		fmt.Fprintf(&b, "🚨 EMERGENCY %s ALERT 🚨\n", strings.ToUpper(r.Asset))
	} else {
		fmt.Fprintf(&b, "🏎️ %s SPEED REPORT\n", strings.ToUpper(r.Asset))
	}
	fmt.Fprintf(&b, "Trigger: %s\n", r.Reason)
	fmt.Fprintf(&b, "Price: $%.2f (%s)\n", r.Features.Price, r.Symbol)
	fmt.Fprintf(&b, "Trend: %s | EMA: %s\n", r.Features.Trend, r.EMACross)
	fmt.Fprintf(&b, "RSI: %s | ATR: %s\n", num(r.Features.RSI, "%.1f"), num(r.Features.ATR, "%.2f"))
	if models.Defined(r.Features.Support) && models.Defined(r.Features.Resistance) {
		fmt.Fprintf(&b, "Support / Resistance: %.2f / %.2f\n", r.Features.Support, r.Features.Resistance)
	}

	rec := r.Recommendation
	source := rec.Source
	if source == "" {
		source = "unknown"
	}
	fmt.Fprintf(&b, "\n🧠 SIGNAL (%s)\n", source)
	fmt.Fprintf(&b, "Action: %s\n", rec.Action)
	if rec.Risk != "" {
		fmt.Fprintf(&b, "Risk: %s\n", rec.Risk)
	}
	if r.Risk.Available {
		switch rec.Action {
		case models.ActionBuy:
			fmt.Fprintf(&b, "🛡️ Stop: $%.2f\n🎯 Target: $%.2f\n", r.Risk.Long.Stop, r.Risk.Long.Target)
		case models.ActionSell:
			fmt.Fprintf(&b, "🛡️ Stop: $%.2f\n🎯 Target: $%.2f\n", r.Risk.Short.Stop, r.Risk.Short.Target)
		default:
			fmt.Fprintf(&b, "Long: stop $%.2f / target $%.2f\nShort: stop $%.2f / target $%.2f\n",
				r.Risk.Long.Stop, r.Risk.Long.Target, r.Risk.Short.Stop, r.Risk.Short.Target)
		}
	}
	if rec.Driver != "" {
		fmt.Fprintf(&b, "\n📰 DRIVER\n%s\n", rec.Driver)
	}
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "\n📊 REASONING\n%s\n", rec.Reasoning)
	}

	if len(r.Headlines) > 0 {
		b.WriteString("\nHEADLINES\n")
		for _, h := range r.Headlines {
			fmt.Fprintf(&b, "- %s\n", h.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func num(v float64, format string) string {
	if !models.Defined(v) {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

// SplitMessage cuts text into consecutive chunks of at most limit
// characters. Concatenating the chunks yields text.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
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
