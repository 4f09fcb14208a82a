package xsession_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"udpdelay/pkg/xenv"
	"udpdelay/pkg/xsession"
)

func TestConfigDefaults(t *testing.T) {
	conf := xsession.DefaultConfig()
	if conf.Validate() == nil {
		t.Fatal("empty remote host accepted")
	}
	conf.RemoteHost = "127.0.0.1"
	if err := conf.Validate(); err != nil {
		t.Fatal(err)
	}
	if conf.RemoteAddr() != "127.0.0.1:5050" {
		t.Fatalf("remote %s", conf.RemoteAddr())
	}
	if conf.LocalAddr() != "" {
		t.Fatalf("local %q", conf.LocalAddr())
	}
	if conf.ProbeInterval() != time.Second || conf.IdleTimeout() != 0 {
		t.Fatalf("interval %v, idle %v", conf.ProbeInterval(), conf.IdleTimeout())
	}

	conf.LocalPort = 6000
	if conf.LocalAddr() != ":6000" {
		t.Fatalf("local %q", conf.LocalAddr())
	}
	conf.RemoteHost = "::1"
	if conf.RemoteAddr() != "[::1]:5050" {
		t.Fatalf("remote %s", conf.RemoteAddr())
	}

	conf.ProbeIntervalSeconds = 0
	if conf.Validate() == nil {
		t.Fatal("zero interval accepted")
	}
}

func TestConfigLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	data := "remote_host: peer.local\nremote_port: 6000\nclient_name: yaml_name\nprobe_interval_seconds: 0.5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DELAY_CLIENT_NAME", "env_name")
	t.Setenv("DELAY_LOCAL_PORT", "7000")

	conf := xsession.DefaultConfig()
	if err := xenv.Load(&conf, path); err != nil {
		t.Fatal(err)
	}
	if conf.RemoteHost != "peer.local" || conf.RemotePort != 6000 {
		t.Fatalf("remote %s", conf.RemoteAddr())
	}
	if conf.ClientName != "env_name" || conf.LocalPort != 7000 {
		t.Fatalf("env not applied: %+v", conf)
	}
	if conf.ProbeInterval() != 500*time.Millisecond {
		t.Fatalf("interval %v", conf.ProbeInterval())
	}
}
