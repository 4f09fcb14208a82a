package xsession

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Config is the client side session configuration.
// Load it with xenv.Load on top of DefaultConfig.
type Config struct {
	RemoteHost           string  `env:"DELAY_REMOTE_HOST" yaml:"remote_host"`
	RemotePort           int     `env:"DELAY_REMOTE_PORT" yaml:"remote_port"`
	LocalAddress         string  `env:"DELAY_LOCAL_ADDRESS" yaml:"local_address"` // optional source interface
	LocalPort            int     `env:"DELAY_LOCAL_PORT" yaml:"local_port"`       // optional source port
	ClientName           string  `env:"DELAY_CLIENT_NAME" yaml:"client_name"`
	ProbeIntervalSeconds float64 `env:"DELAY_PROBE_INTERVAL_SECONDS" yaml:"probe_interval_seconds"`
	IdleTimeoutSeconds   float64 `env:"DELAY_IDLE_TIMEOUT_SECONDS" yaml:"idle_timeout_seconds"` // 0: disabled
}

func DefaultConfig() Config {
	return Config{
		RemotePort:           5050,
		ClientName:           "Go_Client",
		ProbeIntervalSeconds: 1,
	}
}

func (c Config) Validate() error {
	if c.RemoteHost == "" {
		return errors.New("remote host required")
	}
	if c.RemotePort <= 0 || c.RemotePort > 65535 {
		return errors.Errorf("invalid remote port %d", c.RemotePort)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return errors.Errorf("invalid local port %d", c.LocalPort)
	}
	if c.ProbeIntervalSeconds <= 0 {
		return errors.Errorf("invalid probe interval %v", c.ProbeIntervalSeconds)
	}
	if c.IdleTimeoutSeconds < 0 {
		return errors.Errorf("invalid idle timeout %v", c.IdleTimeoutSeconds)
	}
	return nil
}

func (c Config) RemoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// LocalAddr is empty when neither local address nor port is fixed.
func (c Config) LocalAddr() string {
	if c.LocalAddress == "" && c.LocalPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.LocalAddress, strconv.Itoa(c.LocalPort))
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds * float64(time.Second))
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds * float64(time.Second))
}
