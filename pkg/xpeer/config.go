package xpeer

import (
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	Listen             string  `env:"PEER_LISTEN" yaml:"listen"`
	FeedListen         string  `env:"PEER_FEED_LISTEN" yaml:"feed_listen"` // 空: 不开启websocket推送
	FeedPath           string  `env:"PEER_FEED_PATH" yaml:"feed_path"`
	MaxClients         int     `env:"PEER_MAX_CLIENTS" yaml:"max_clients"`
	IdleTimeoutSeconds float64 `env:"PEER_IDLE_TIMEOUT_SECONDS" yaml:"idle_timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		Listen:             ":5050",
		FeedPath:           "/feed",
		MaxClients:         1024,
		IdleTimeoutSeconds: 10,
	}
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address required")
	}
	if c.MaxClients <= 0 {
		return errors.Errorf("invalid max clients %d", c.MaxClients)
	}
	if c.IdleTimeoutSeconds < 0 {
		return errors.Errorf("invalid idle timeout %v", c.IdleTimeoutSeconds)
	}
	if c.FeedListen != "" && c.FeedPath == "" {
		return errors.New("feed path required")
	}
	return nil
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds * float64(time.Second))
}
