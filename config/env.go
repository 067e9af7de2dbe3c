package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Env holds secrets and endpoints read from the process environment.
type Env struct {
	WebsocketURL     string
	FlashContract    common.Address
	PrivateKey       *ecdsa.PrivateKey
	TelegramBotToken string
	TelegramChatID   string
	LogLevel         slog.Level
	MetricsAddr      string
}

// LoadEnv loads the given dotenv files (missing files are ignored) and then
// validates the environment.
func LoadEnv(files ...string) (*Env, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return EnvFrom(os.Getenv)
}

// EnvFrom validates the environment exposed by getenv.
func EnvFrom(getenv func(string) string) (*Env, error) {
	env := &Env{
		TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getenv("TELEGRAM_CHAT_ID"),
		MetricsAddr:      getenv("METRICS_ADDR"),
	}

	env.WebsocketURL = getenv("WEBSOCKET_PROVIDER_URL")
	u, err := url.Parse(env.WebsocketURL)
	if env.WebsocketURL == "" || err != nil || u.Host == "" {
		return nil, invalid("WEBSOCKET_PROVIDER_URL must be a valid URL")
	}
	// log subscriptions need a websocket transport
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, invalid(fmt.Sprintf("WEBSOCKET_PROVIDER_URL has unsupported scheme %q, want ws or wss", u.Scheme))
	}

	addr := getenv("FLASHBOT_V2_ADDRESS")
	if !common.IsHexAddress(addr) {
		return nil, invalid("FLASHBOT_V2_ADDRESS must be a hex address")
	}
	env.FlashContract = common.HexToAddress(addr)

	key := strings.TrimPrefix(getenv("PRIVATE_KEY"), "0x")
	if key == "" {
		return nil, invalid("PRIVATE_KEY is required")
	}
	if env.PrivateKey, err = crypto.HexToECDSA(key); err != nil {
		return nil, invalid("PRIVATE_KEY is not a valid secp256k1 key")
	}

	if (env.TelegramBotToken == "") != (env.TelegramChatID == "") {
		return nil, invalid("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	if lvl := getenv("LOG_LEVEL"); lvl != "" {
		if err := env.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, invalid(fmt.Sprintf("LOG_LEVEL %q is not a log level", lvl))
		}
	}

	return env, nil
}

// Account returns the address controlled by the private key.
func (e *Env) Account() common.Address {
	return crypto.PubkeyToAddress(e.PrivateKey.PublicKey)
}
