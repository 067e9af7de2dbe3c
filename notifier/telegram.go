// Package notifier delivers trade notifications to chat channels.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/reporter"
)

const defaultSendTimeout = 10 * time.Second

// TelegramConfig holds Telegram configuration.
type TelegramConfig struct {
	BotToken string
	// ChatID is a numeric chat id or an @channel username.
	ChatID string
	// Endpoint overrides the Bot API endpoint format, mainly for tests.
	Endpoint string
}

// Telegram sends notifications through the Telegram Bot API.
type Telegram struct {
	api     *tgbotapi.BotAPI
	client  tgbotapi.HTTPClient
	chatID  int64
	channel string
	now     func() time.Time
}

// NewTelegram creates a Telegram notifier. It returns nil when the bot token or
// chat id is missing.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	// tgbotapi.NewBotAPI calls getMe, so a bad token would fail startup
	// instead of the first notice.
	client := &http.Client{Timeout: defaultSendTimeout}
	api := &tgbotapi.BotAPI{
		Token:  cfg.BotToken,
		Client: client,
		Buffer: 100,
	}
	api.SetAPIEndpoint(endpoint)

	t := &Telegram{
		api:    api,
		client: client,
		now:    time.Now,
	}
	if id, err := strconv.ParseInt(cfg.ChatID, 10, 64); err == nil {
		t.chatID = id
	} else {
		t.channel = cfg.ChatID
	}
	return t
}

// NotifySuccess reports an executed trade with its profit and transaction hash.
func (t *Telegram) NotifySuccess(ctx context.Context, n chains.TradeNotice) error {
	text := fmt.Sprintf("🎉 Successful trade executed\\! 🎉\n\n*%s*\n*%s*\n\n%s Profit Amount: %s\nTx: `%s`",
		escape(t.now().Format(time.RFC1123)),
		escape(strings.Join(n.TokenPath, " > ")),
		escape(n.Token.Symbol),
		escape(reporter.FormatUnits(n.Amount, n.Token.Decimals)),
		n.TxHash.Hex(),
	)
	return t.send(ctx, text)
}

// NotifyFailure reports a trade that did not succeed.
func (t *Telegram) NotifyFailure(ctx context.Context, n chains.TradeNotice) error {
	text := fmt.Sprintf("❌ Error on trade executed\\! ❌\n\n*%s*\n*%s*\nOutcome: %s",
		escape(t.now().Format(time.RFC1123)),
		escape(strings.Join(n.TokenPath, " > ")),
		escape(n.Outcome.String()),
	)
	return t.send(ctx, text)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func (t *Telegram) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	return msg
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// shallow copy so the request carries this call's context
	api := *t.api
	api.Client = contextClient{ctx: ctx, next: t.client}

	if _, err := api.Send(t.message(text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

type contextClient struct {
	ctx  context.Context
	next tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.next.Do(req.WithContext(c.ctx))
}
