package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

func testAddress(t *testing.T, prefix string, seed byte) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	addr, err := bech32.ConvertAndEncode(prefix, raw)
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}
	return addr
}

func validConfig(t *testing.T) *Config {
	return &Config{
		GRPCEndpoint:    "localhost:9090",
		RegistryAddress: testAddress(t, "neutron", 1),
		EscrowAddress:   testAddress(t, "neutron", 2),
	}
}

// TestConfigValidate_AppliesDefaults verifies that Validate seeds network,
// gas and denom settings when they are not explicitly set.
func TestConfigValidate_AppliesDefaults(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if cfg.Network != Testnet {
		t.Fatalf("expected default testnet, got %#v", cfg.Network)
	}
	if cfg.ChainID != "pion-1" {
		t.Fatalf("unexpected ChainID: %s", cfg.ChainID)
	}
	if cfg.GasPrice != "0.0053untrn" {
		t.Fatalf("unexpected GasPrice: %s", cfg.GasPrice)
	}
	if cfg.GasAdjustment != 1.3 {
		t.Fatalf("unexpected GasAdjustment: %v", cfg.GasAdjustment)
	}
	if cfg.Bech32Prefix != "neutron" || cfg.Denom != "untrn" || cfg.Decimals() != 6 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidate_LocalNetworkProvidesEndpoint(t *testing.T) {
	cfg := validConfig(t)
	cfg.GRPCEndpoint = ""
	cfg.Network = Local
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.GRPCEndpoint != "localhost:9090" || cfg.ChainID != "testing" {
		t.Fatalf("local defaults not applied: %+v", cfg)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing endpoint", func(c *Config) { c.GRPCEndpoint = "" }, "gRPC endpoint is required in configuration"},
		{"bad endpoint", func(c *Config) { c.GRPCEndpoint = "ftp://x" }, "gRPC endpoint must be host:port"},
		{"missing registry", func(c *Config) { c.RegistryAddress = "" }, "Registry contract address is required"},
		{"registry wrong prefix", func(c *Config) { c.RegistryAddress = testAddress(t, "cosmos", 1) }, "Registry address must be a valid neutron address"},
		{"escrow garbage", func(c *Config) { c.EscrowAddress = "neutron1xyz" }, "Escrow address must be a valid neutron address"},
		{"missing escrow", func(c *Config) { c.EscrowAddress = "" }, "Escrow contract address is required"},
		{"negative gas adjustment", func(c *Config) { c.GasAdjustment = -1 }, "Gas adjustment must be positive"},
		{"bad gas price", func(c *Config) { c.GasPrice = "cheap" }, "Gas price must be"},
		{"both keys", func(c *Config) { c.Mnemonic = "a b c"; c.PrivateKey = "00" }, "either a mnemonic or a private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, sdkerrors.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestConfigValidate_DisplayDecimals(t *testing.T) {
	dec := func(v int32) *int32 { return &v }
	tests := []struct {
		name    string
		in      *int32
		want    int32
		wantErr bool
	}{
		{"unset", nil, DefaultDisplayDecimals, false},
		{"explicit zero", dec(0), 0, false},
		{"custom", dec(18), 18, false},
		{"too large", dec(19), 0, true},
		{"negative", dec(-1), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.DisplayDecimals = tt.in
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, sdkerrors.ErrConfiguration) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Decimals() != tt.want {
				t.Fatalf("Decimals() = %d, want %d", cfg.Decimals(), tt.want)
			}
		})
	}
}

func TestConfigValidate_CustomPrefix(t *testing.T) {
	cfg := &Config{
		GRPCEndpoint:    "https://grpc.example.org:443",
		RegistryAddress: testAddress(t, "wasm", 1),
		EscrowAddress:   testAddress(t, "wasm", 2),
		Bech32Prefix:    "wasm",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

// TestTimeoutsWithDefaults verifies that WithDefaults preserves explicitly set
// timeout values and fills in defaults for zero values.
func TestTimeoutsWithDefaults(t *testing.T) {
	in := Timeouts{
		Dial:     time.Second,
		TxSubmit: 42 * time.Second,
	}

	out := in.WithDefaults()

	if out.Dial != time.Second {
		t.Fatalf("Dial overwritten: got %v", out.Dial)
	}
	if out.TxSubmit != 42*time.Second {
		t.Fatalf("TxSubmit overwritten: got %v", out.TxSubmit)
	}
	if out.Query != 10*time.Second {
		t.Fatalf("Query default mismatch: %v", out.Query)
	}
	if out.BlockHeight != 5*time.Second {
		t.Fatalf("BlockHeight default mismatch: %v", out.BlockHeight)
	}
	if out.TxWait != 60*time.Second {
		t.Fatalf("TxWait default mismatch: %v", out.TxWait)
	}
}

func TestLoadYAML(t *testing.T) {
	registry := testAddress(t, "neutron", 3)
	escrow := testAddress(t, "neutron", 4)
	doc := "network:\n  name: local\n" +
		"registry_address: " + registry + "\n" +
		"escrow_address: " + escrow + "\n" +
		"gas_adjustment: 1.5\n" +
		"display_decimals: 0\n" +
		"debug: true\n" +
		"timeouts:\n  tx_wait: 2m\n"

	path := filepath.Join(t.TempDir(), "httpay.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Network != Local || cfg.GRPCEndpoint != "localhost:9090" {
		t.Fatalf("network not expanded: %+v", cfg.Network)
	}
	if cfg.RegistryAddress != registry || cfg.EscrowAddress != escrow {
		t.Fatalf("addresses not loaded: %+v", cfg)
	}
	if cfg.GasAdjustment != 1.5 || !cfg.Debug || cfg.Decimals() != 0 {
		t.Fatalf("scalars not loaded: %+v", cfg)
	}
	if cfg.Timeouts.TxWait != 2*time.Minute {
		t.Fatalf("TxWait = %v", cfg.Timeouts.TxWait)
	}
}

func TestParseUnknownNetwork(t *testing.T) {
	_, err := Parse([]byte("network:\n  name: moon\n"))
	if !errors.Is(err, sdkerrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, sdkerrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
