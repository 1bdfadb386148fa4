package config

import "testing"

func TestLoadDefaultsAccountPrefix(t *testing.T) {
	t.Setenv("WALLET_ACCOUNT_PREFIXES", "")

	cfg := Load()
	if len(cfg.WalletAccountPrefixes) == 0 {
		t.Fatal("empty env value left the prefix list empty")
	}
	if cfg.WalletAccountPrefixes[0] != "FICORE" {
		t.Fatalf("expected canonical fallback FICORE, got %q", cfg.WalletAccountPrefixes[0])
	}
}

func TestLoadParsesPrefixList(t *testing.T) {
	t.Setenv("WALLET_ACCOUNT_PREFIXES", "FICORE,LEGACY")

	cfg := Load()
	if len(cfg.WalletAccountPrefixes) != 2 {
		t.Fatalf("expected 2 prefixes, got %v", cfg.WalletAccountPrefixes)
	}
	if cfg.WalletAccountPrefixes[0] != "FICORE" || cfg.WalletAccountPrefixes[1] != "LEGACY" {
		t.Fatalf("unexpected prefixes: %v", cfg.WalletAccountPrefixes)
	}
}
