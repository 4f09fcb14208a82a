package xenv_test

import (
	"os"
	"path/filepath"
	"testing"

	"udpdelay/pkg/xenv"
)

type testConf struct {
	Host     string  `env:"XENV_TEST_HOST" yaml:"host"`
	Port     int     `env:"XENV_TEST_PORT" yaml:"port"`
	Interval float64 `env:"XENV_TEST_INTERVAL" yaml:"interval"`
	Name     string  `env:"XENV_TEST_NAME" yaml:"name"`
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(path, []byte("host: file-host\nport: 6000\ninterval: 0.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XENV_TEST_PORT", "7000")

	conf := &testConf{Host: "default-host", Port: 5050, Interval: 1, Name: "Go_Client"}
	if err := xenv.Load(conf, path); err != nil {
		t.Fatal(err)
	}
	if conf.Host != "file-host" {
		t.Fatalf("host %q", conf.Host)
	}
	if conf.Port != 7000 {
		t.Fatalf("env must win over file, port %d", conf.Port)
	}
	if conf.Interval != 0.5 {
		t.Fatalf("interval %v", conf.Interval)
	}
	if conf.Name != "Go_Client" {
		t.Fatalf("default lost, name %q", conf.Name)
	}
}

func TestLoadErrors(t *testing.T) {
	conf := &testConf{}
	if err := xenv.Load(conf, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}

	t.Setenv("XENV_TEST_PORT", "not-a-number")
	if err := xenv.Load(conf, ""); err == nil {
		t.Fatal("bad env value must fail")
	}
}
