package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/caarlos0/env/v11"
)

type Environment int

const (
	LOCAL Environment = iota
	PROD
)

func (e Environment) String() string {
	switch e {
	case LOCAL:
		return "LOCAL"
	case PROD:
		return "PROD"
	default:
		return "UNKNOWN"
	}
}

func (e *Environment) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "LOCAL", "":
		*e = LOCAL
	case "PROD":
		*e = PROD
	default:
		return fmt.Errorf("unknown environment %q", string(text))
	}
	return nil
}

type Config struct {
	Environment Environment `env:"ENVIRONMENT" envDefault:"LOCAL"`
	Host        string      `env:"HOST" envDefault:"0.0.0.0"`
	Port        string      `env:"PORT" envDefault:"8080"`

	DiscordToken      string `env:"DISCORD_TOKEN"`
	DiscordTokenParam string `env:"DISCORD_TOKEN_PARAM"`
	DiscordAppID      string `env:"DISCORD_APP_ID"`
	DiscordGuildID    string `env:"DISCORD_GUILD_ID"`
	DiscordInviteURL  string `env:"DISCORD_INVITE_URL"`

	SellersTable   string `env:"SELLERS_TABLE" envDefault:"Sellers"`
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT"`
	SellerIDPrefix string `env:"SELLER_ID_PREFIX" envDefault:"S-"`

	MakeWebhookURL      string `env:"MAKE_WEBHOOK_URL"`
	MakeWebhookURLParam string `env:"MAKE_WEBHOOK_URL_PARAM"`

	NotifySecret string `env:"NOTIFY_SECRET"`

	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	ConsentVersion       string        `env:"CONSENT_VERSION" envDefault:"v1"`

	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads the configuration from the environment. Secrets that live in SSM are
// resolved separately by ResolveSecrets.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SessionIdleTTL <= 0 {
		return Config{}, errors.New("SESSION_IDLE_TTL must be positive")
	}
	if cfg.SessionSweepInterval <= 0 {
		return Config{}, errors.New("SESSION_SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveSecrets fills DiscordToken and MakeWebhookURL from SSM when they are not set
// directly but their *_PARAM counterpart is.
func (c *Config) ResolveSecrets(ctx context.Context, params ParameterGetter) error {
	secrets := []struct {
		value *string
		param string
	}{
		{value: &c.DiscordToken, param: c.DiscordTokenParam},
		{value: &c.MakeWebhookURL, param: c.MakeWebhookURLParam},
	}

	for _, s := range secrets {
		if *s.value != "" || s.param == "" {
			continue
		}

		v, err := getParameter(ctx, params, s.param)
		if err != nil {
			return err
		}
		*s.value = v
	}

	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN or DISCORD_TOKEN_PARAM must be set")
	}

	return nil
}

func getParameter(ctx context.Context, params ParameterGetter, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get ssm parameter %q: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("ssm parameter %q is empty", name)
	}

	return aws.ToString(out.Parameter.Value), nil
}
