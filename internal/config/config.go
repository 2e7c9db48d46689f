package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the runtime tunables for the table handler. Values come
// from Nakama's runtime environment (--runtime.env on the server); defaults
// suit local play.
type Config struct {
	CountdownSeconds  int           `env:"THIRTEEN_COUNTDOWN_SEC"      envDefault:"3"`
	DisconnectGrace   time.Duration `env:"THIRTEEN_DISCONNECT_GRACE"   envDefault:"2s"`
	EmptyTableTTL     time.Duration `env:"THIRTEEN_EMPTY_TABLE_TTL"    envDefault:"30s"`
	BotsEnabled       bool          `env:"THIRTEEN_BOTS_ENABLED"       envDefault:"true"`
	BotThinkMin       time.Duration `env:"THIRTEEN_BOT_THINK_MIN"      envDefault:"800ms"`
	BotThinkMax       time.Duration `env:"THIRTEEN_BOT_THINK_MAX"      envDefault:"2400ms"`
	BotAutoFillDelay  time.Duration `env:"THIRTEEN_BOT_AUTOFILL_DELAY" envDefault:"5s"`
	BotIdentitiesPath string        `env:"THIRTEEN_BOT_IDENTITIES"     envDefault:"data/bot_identities.json"`
	BaseStake         int64         `env:"THIRTEEN_BASE_STAKE"         envDefault:"100"`
	WelcomeBonus      int64         `env:"THIRTEEN_WELCOME_BONUS"      envDefault:"10000"`
	VoiceIssuer       string        `env:"THIRTEEN_VOICE_ISSUER"       envDefault:"demo-issuer"`
	VoiceSecret       string        `env:"THIRTEEN_VOICE_SECRET"       envDefault:"demo-secret"`
	VoiceDomain       string        `env:"THIRTEEN_VOICE_DOMAIN"       envDefault:"tla.vivox.com"`
	VoiceTokenTTL     time.Duration `env:"THIRTEEN_VOICE_TOKEN_TTL"    envDefault:"90s"`
}

// FromRuntimeEnv parses the Nakama runtime environment map. Unset keys take
// their defaults; a malformed value fails the whole parse.
func FromRuntimeEnv(environment map[string]string) (Config, error) {
	if environment == nil {
		environment = map[string]string{}
	}
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse runtime env: %w", err)
	}
	if cfg.BotThinkMax < cfg.BotThinkMin {
		cfg.BotThinkMax = cfg.BotThinkMin
	}
	return cfg, nil
}

// Default returns the configuration with every knob at its default value.
func Default() Config {
	cfg, _ := FromRuntimeEnv(map[string]string{})
	return cfg
}
