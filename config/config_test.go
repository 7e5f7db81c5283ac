package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeystorePassphrase = "test-passphrase"

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prntd.toml")

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Genesis.RewardToken != "PRNT" || cfg.RPCAddress != defaultRPCAddress {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := os.Stat(cfg.OperatorKeystorePath); err != nil {
		t.Fatalf("keystore not written: %v", err)
	}

	reloaded, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.OperatorKeystorePath != cfg.OperatorKeystorePath {
		t.Fatalf("keystore path changed: %s != %s", reloaded.OperatorKeystorePath, cfg.OperatorKeystorePath)
	}
	if len(reloaded.Genesis.MFD.LockDurations) != 4 || reloaded.Genesis.MFD.LockMultipliers[3] != 25 {
		t.Fatalf("lock tiers not round-tripped: %+v", reloaded.Genesis.MFD)
	}
	if len(reloaded.Genesis.Assets) != 2 || reloaded.Genesis.Assets[1].PriceUsd != "2000" {
		t.Fatalf("assets not round-tripped: %+v", reloaded.Genesis.Assets)
	}
}

func TestLoadParsesTOMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prntd.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"

[rpc]
RequestsPerMinute = 120
Burst = 10

[genesis]
RewardToken = "prnt"

[genesis.mfd]
LockDurations = [100, 200]
LockMultipliers = [1, 2]
RewardsDuration = 1000
RewardsLookback = 100
VestDuration = 500
BurnRatioBps = 2500

[genesis.chef]
RewardsPerSecond = "0.5"
RewardBudget = "1000"
EndingTimeUpdateCadence = 3600
ScheduleOffsets = [10, 20]
ScheduleRates = ["2", "1.5"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9000" || cfg.RPC.RequestsPerMinute != 120 || cfg.RPC.Burst != 10 {
		t.Fatalf("rpc settings not applied: %+v", cfg)
	}
	if cfg.Genesis.RewardToken != "PRNT" {
		t.Fatalf("expected normalized reward token, got %q", cfg.Genesis.RewardToken)
	}
	if got := cfg.Genesis.MFD.LockDurations; len(got) != 2 || got[1] != 200 {
		t.Fatalf("unexpected lock durations %v", got)
	}
	if cfg.Genesis.BaseToken != "WETH" {
		t.Fatalf("defaults should fill omitted keys, got base token %q", cfg.Genesis.BaseToken)
	}
	rates, err := cfg.Genesis.Chef.Rates()
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if rates[1].String() != "1500000000000000000" {
		t.Fatalf("unexpected schedule rate %s", rates[1])
	}
	if cfg.OperatorKeystorePath == "" {
		t.Fatalf("keystore path should be persisted")
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(written), "OperatorKeystorePath") {
		t.Fatalf("keystore path not written back:\n%s", written)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prntd.yaml")
	contents := `rpc_address: "0.0.0.0:7545"
environment: staging
indexer:
  dsn: events.db
genesis:
  bounty:
    min_stake_amount_usd: "10"
    base_bounty_usd_target: "1.25"
    max_base_bounty: "50"
    hunter_share: 5000
    reserve: "10"
    whitelist_active: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:7545" || cfg.Environment != "staging" || cfg.Indexer.DSN != "events.db" {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}
	if cfg.Genesis.Bounty.HunterShare != 5000 || !cfg.Genesis.Bounty.WhitelistActive {
		t.Fatalf("bounty params not applied: %+v", cfg.Genesis.Bounty)
	}
	target, err := Usd(cfg.Genesis.Bounty.BaseBountyUsdTarget)
	if err != nil || target.String() != "125000000" {
		t.Fatalf("unexpected bounty target %v (%v)", target, err)
	}
	if cfg.Genesis.Compounder.CompoundFee != 300 {
		t.Fatalf("compounder defaults lost: %+v", cfg.Genesis.Compounder)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prntd.toml")
	if err := os.WriteFile(path, []byte("ListenAddress = \"0.0.0.0:7000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase)); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prntd.toml")
	t.Setenv(EnvRPCAddress, "127.0.0.1:1234")
	t.Setenv(EnvDataDir, filepath.Join(dir, "state"))
	t.Setenv(EnvEnvironment, "mainnet")

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:1234" {
		t.Fatalf("rpc address override ignored: %s", cfg.RPCAddress)
	}
	if cfg.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("data dir override ignored: %s", cfg.DataDir)
	}
	if cfg.Environment != "mainnet" {
		t.Fatalf("environment override ignored: %s", cfg.Environment)
	}
}

func TestGenesisValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Genesis)
	}{
		{"mismatched tiers", func(g *Genesis) { g.MFD.LockMultipliers = g.MFD.LockMultipliers[:2] }},
		{"no tiers", func(g *Genesis) { g.MFD.LockDurations, g.MFD.LockMultipliers = nil, nil }},
		{"burn ratio", func(g *Genesis) { g.MFD.BurnRatioBps = 10_001 }},
		{"lookback", func(g *Genesis) { g.MFD.RewardsLookback = g.MFD.RewardsDuration + 1 }},
		{"deposit ratio", func(g *Genesis) { g.Eligibility.RequiredDepositRatio = 10_001 }},
		{"price tolerance", func(g *Genesis) { g.Eligibility.PriceToleranceRatio = 7_999 }},
		{"hunter share", func(g *Genesis) { g.Bounty.HunterShare = 0 }},
		{"compound fee", func(g *Genesis) { g.Compounder.CompoundFee = 2_001 }},
		{"slippage", func(g *Genesis) { g.Compounder.SlippageLimit = 10_000 }},
		{"ltv above threshold", func(g *Genesis) { g.Assets[0].MaxLTVBps = g.Assets[0].LiquidationThresholdBps + 1 }},
		{"duplicate asset", func(g *Genesis) { g.Assets[1].Symbol = g.Assets[0].Symbol }},
		{"bad price", func(g *Genesis) { g.Assets[0].PriceUsd = "one" }},
		{"unlisted base", func(g *Genesis) { g.Assets = g.Assets[:1] }},
		{"reward listed", func(g *Genesis) { g.Assets[0].Symbol = g.RewardToken }},
		{"bad allocation", func(g *Genesis) { g.Allocations[0].Amount = "-5" }},
		{"bad address", func(g *Genesis) { g.Treasury = "nope" }},
		{"schedule mismatch", func(g *Genesis) { g.Chef.ScheduleOffsets = []uint64{1} }},
		{"schedule order", func(g *Genesis) {
			g.Chef.ScheduleOffsets = []uint64{10, 10}
			g.Chef.ScheduleRates = []string{"1", "2"}
		}},
		{"missing token", func(g *Genesis) { g.LPToken = "" }},
		{"kink", func(g *Genesis) { g.Lending.OptimalUtilisationBps = 10_001 }},
	}
	if err := DefaultGenesis().Validate(); err != nil {
		t.Fatalf("default genesis invalid: %v", err)
	}
	for _, tc := range cases {
		g := DefaultGenesis()
		tc.mutate(&g)
		if err := g.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"", 18, "0", false},
		{"1", 18, "1000000000000000000", false},
		{"12.5", 8, "1250000000", false},
		{".25", 2, "25", false},
		{"0.000000001", 8, "", true},
		{"-1", 8, "", true},
		{"+1", 8, "", true},
		{"1.2.3", 8, "", true},
		{"abc", 8, "", true},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseUnits(%q): expected error, got %s", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
