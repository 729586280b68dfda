package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Addr != ":5000" {
		t.Fatalf("默认监听地址不正确: %s", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "csv" || cfg.Store.DataDir != "." {
		t.Fatalf("默认存储配置不正确: %+v", cfg.Store)
	}
	if cfg.Oracle.Source != "coingecko" || cfg.Oracle.AssetID != "wrapped-quil" {
		t.Fatalf("默认 oracle 配置不正确: %+v", cfg.Oracle)
	}
	if cfg.Watch.StaleAfter != time.Hour {
		t.Fatalf("默认 stale_after 不正确: %s", cfg.Watch.StaleAfter)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := []byte("server:\n  addr: \":8080\"\nstore:\n  backend: memory\nwatch:\n  stale_after: 2h\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr 覆盖未生效: %s", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("backend 覆盖未生效: %s", cfg.Store.Backend)
	}
	if cfg.Watch.StaleAfter != 2*time.Hour {
		t.Fatalf("stale_after 应解析为 2h, 实际 %s", cfg.Watch.StaleAfter)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUILTRACKER_SERVER_ADDR", ":9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("环境变量覆盖未生效: %s", cfg.Server.Addr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	cfg := *base
	cfg.Store.Backend = "bolt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("未知 backend 应报错")
	}

	cfg = *base
	cfg.Store.Backend = "postgres"
	cfg.Store.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres 缺少 dsn 应报错")
	}

	cfg = *base
	cfg.Oracle.Source = "onchain"
	if err := cfg.Validate(); err == nil {
		t.Fatal("onchain 缺少 rpc_url 应报错")
	}

	cfg = *base
	cfg.Watch.StaleAfter = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("stale_after<=0 应报错")
	}

	cfg = *base
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram 缺少 bot_token 应报错")
	}
}
