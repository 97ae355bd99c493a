// Package telegram forwards dashboard alerts to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 32

// Client sends alerts through the Bot API from a background worker, so
// Alert never blocks the caller on the network.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	queue     chan string
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ interfaces.Alerter = (*Client)(nil)

type options struct {
	endpoint       string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// Option tunes a Client.
type Option func(*options)

// WithEndpoint overrides the Bot API endpoint format, e.g. for a proxy.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient replaces the HTTP client used for Bot API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRetries sets the attempt count and the linear backoff step.
func WithRetries(maxRetries int, base time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.retryDelayBase = base
	}
}

// NewClient validates the chat ID, checks the token against the Bot API and
// starts the send worker.
func NewClient(botToken, chatID string, opts ...Option) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	o := options{
		endpoint:       tgbotapi.APIEndpoint,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		maxRetries:     3,
		retryDelayBase: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxRetries <= 0 {
		o.maxRetries = 3
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, o.endpoint, o.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     o.maxRetries,
		retryDelayBase: o.retryDelayBase,
		queue:          make(chan string, queueSize),
	}
	c.wg.Add(1)
	go c.worker()
	return c, nil
}

// Alert queues a message for delivery. When the queue is full the message
// is dropped and logged.
func (c *Client) Alert(message string) {
	select {
	case c.queue <- message:
	default:
		logger.Warn(context.Background(), "Telegram queue full, dropping alert", "message", message)
	}
}

// Close drains the queue and stops the worker.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.queue) })
	c.wg.Wait()
}

func (c *Client) worker() {
	defer c.wg.Done()
	for message := range c.queue {
		if err := c.Send(message); err != nil {
			logger.ErrorWithErr(context.Background(), "Failed to forward alert to Telegram", err)
		}
	}
}

// Send delivers one alert synchronously.
func (c *Client) Send(message string) error {
	return c.sendMarkdownV2(formatAlert(message))
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// formatAlert renders an alert as a MarkdownV2 message.
func formatAlert(message string) string {
	return "📣 *Dashboard alert*\n\n" + escapeMarkdownV2(strings.TrimSpace(message))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
