// Package config defines the runtime configuration for the SDK: the target
// Neutron network, the gRPC endpoint, registry and escrow contract addresses,
// gas pricing, optional signing material, debug mode and operation timeouts.
// It also provides validation and defaulting helpers.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/go-playground/validator/v10"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBech32Prefix is the Neutron account address prefix.
	DefaultBech32Prefix = "neutron"
	// DefaultDenom is the native Neutron fee and payment denom.
	DefaultDenom = "untrn"
	// DefaultGasPrice is the minimum gas price accepted by Neutron validators.
	DefaultGasPrice = "0.0053untrn"
	// DefaultGasAdjustment multiplies simulated gas to obtain the gas limit.
	DefaultGasAdjustment = 1.3
	// DefaultDisplayDecimals is the exponent between untrn and NTRN.
	DefaultDisplayDecimals int32 = 6
)

// Config holds all SDK settings required to initialize the ledger transport
// and the contract clients. Use Validate to fill implicit defaults and to
// check for required fields.
type Config struct {
	// Network selects the target chain. Its fields seed ChainID, GRPCEndpoint
	// and GasPrice when those are left empty. Default: Testnet.
	Network Network `json:"network" yaml:"network"`
	// GRPCEndpoint is the Cosmos gRPC endpoint: "host:port", "http://host:port"
	// or "https://host:port" (TLS).
	GRPCEndpoint string `json:"grpc_endpoint" yaml:"grpc_endpoint" validate:"required,grpcendpoint"`
	// ChainID is used in sign bytes.
	ChainID string `json:"chain_id" yaml:"chain_id" validate:"required"`
	// RegistryAddress is the tool registry contract.
	RegistryAddress string `json:"registry_address" yaml:"registry_address" validate:"required,bech32addr"`
	// EscrowAddress is the escrow contract.
	EscrowAddress string `json:"escrow_address" yaml:"escrow_address" validate:"required,bech32addr"`
	// Bech32Prefix is the account address prefix. Default: neutron.
	Bech32Prefix string `json:"bech32_prefix" yaml:"bech32_prefix"`
	// GasPrice is a decimal coin, e.g. "0.0053untrn".
	GasPrice string `json:"gas_price" yaml:"gas_price" validate:"required,gasprice"`
	// GasAdjustment scales simulated gas. Default: 1.3.
	GasAdjustment float64 `json:"gas_adjustment" yaml:"gas_adjustment" validate:"gt=0"`
	// Denom is the default payment denom. Default: untrn.
	Denom string `json:"denom" yaml:"denom"`
	// DisplayDecimals is the exponent used when formatting amounts. Nil means
	// DefaultDisplayDecimals; an explicit 0 formats whole base units.
	DisplayDecimals *int32 `json:"display_decimals,omitempty" yaml:"display_decimals,omitempty" validate:"omitempty,gte=0,lte=18"`
	// Mnemonic is an optional BIP-39 phrase used for signed operations.
	Mnemonic string `json:"mnemonic,omitempty" yaml:"mnemonic,omitempty"`
	// PrivateKey is an optional hex-encoded secp256k1 key (64 hex characters)
	// used when Mnemonic is empty.
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults for defaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	Dial        time.Duration `json:"dial" yaml:"dial"`                 // gRPC connect
	Query       time.Duration `json:"query" yaml:"query"`               // smart queries
	BlockHeight time.Duration `json:"block_height" yaml:"block_height"` // latest block lookup
	TxSubmit    time.Duration `json:"tx_submit" yaml:"tx_submit"`       // simulate + sign + broadcast
	TxWait      time.Duration `json:"tx_wait" yaml:"tx_wait"`           // inclusion wait
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("grpcendpoint", validateGRPCEndpoint)
	_ = validate.RegisterValidation("bech32addr", validateBech32Address)
	_ = validate.RegisterValidation("gasprice", validateGasPrice)
}

// Validate normalizes the configuration by applying implicit defaults
// (network Testnet, prefix, denom, gas settings, decimals) and verifies the
// result. It returns a ConfigurationError describing the first invalid field.
func (c *Config) Validate() error {
	if c.Network.ChainID == "" {
		c.Network = Testnet
	}
	if c.ChainID == "" {
		c.ChainID = c.Network.ChainID
	}
	if c.GRPCEndpoint == "" {
		c.GRPCEndpoint = c.Network.GRPCEndpoint
	}
	if c.GasPrice == "" {
		c.GasPrice = c.Network.GasPrice
	}
	if c.GasPrice == "" {
		c.GasPrice = DefaultGasPrice
	}
	if c.GasAdjustment == 0 {
		c.GasAdjustment = DefaultGasAdjustment
	}
	if c.Bech32Prefix == "" {
		c.Bech32Prefix = DefaultBech32Prefix
	}
	if c.Denom == "" {
		c.Denom = DefaultDenom
	}
	if c.DisplayDecimals == nil {
		d := DefaultDisplayDecimals
		c.DisplayDecimals = &d
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return sdkerrors.Configuration(c.describe(fieldErrs[0]))
		}
		return sdkerrors.Configuration(fmt.Sprintf("invalid configuration: %v", err))
	}

	if c.Mnemonic != "" && c.PrivateKey != "" {
		return sdkerrors.Configuration("Provide either a mnemonic or a private key, not both")
	}
	return nil
}

// Decimals returns the display exponent, DefaultDisplayDecimals when unset.
func (c *Config) Decimals() int32 {
	if c.DisplayDecimals == nil {
		return DefaultDisplayDecimals
	}
	return *c.DisplayDecimals
}

// HasSigningMaterial reports whether the config carries a mnemonic or key.
func (c *Config) HasSigningMaterial() bool {
	return c.Mnemonic != "" || c.PrivateKey != ""
}

func (c *Config) describe(fe validator.FieldError) string {
	switch fe.StructField() {
	case "GRPCEndpoint":
		if fe.Tag() == "required" {
			return "gRPC endpoint is required in configuration"
		}
		return "gRPC endpoint must be host:port or a URL starting with http:// or https://"
	case "ChainID":
		return "Chain ID is required in configuration"
	case "RegistryAddress":
		if fe.Tag() == "required" {
			return "Registry contract address is required in configuration"
		}
		return fmt.Sprintf("Registry address must be a valid %s address (starting with %s1)", c.Bech32Prefix, c.Bech32Prefix)
	case "EscrowAddress":
		if fe.Tag() == "required" {
			return "Escrow contract address is required in configuration"
		}
		return fmt.Sprintf("Escrow address must be a valid %s address (starting with %s1)", c.Bech32Prefix, c.Bech32Prefix)
	case "GasPrice":
		return "Gas price must be a decimal amount followed by a denom, e.g. " + DefaultGasPrice
	case "GasAdjustment":
		return "Gas adjustment must be positive"
	case "DisplayDecimals":
		return "Display decimals must be between 0 and 18"
	}
	return fmt.Sprintf("invalid configuration field %s (%s)", fe.Namespace(), fe.Tag())
}

func validateGRPCEndpoint(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	for _, scheme := range []string{"https://", "http://"} {
		v = strings.TrimPrefix(v, scheme)
	}
	host, port, ok := strings.Cut(v, ":")
	if !ok || host == "" || port == "" || strings.ContainsAny(v, " /") {
		return false
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateBech32Address(fl validator.FieldLevel) bool {
	prefix := DefaultBech32Prefix
	if parent := fl.Parent(); parent.Kind() == reflect.Struct {
		if p := parent.FieldByName("Bech32Prefix"); p.IsValid() && p.String() != "" {
			prefix = p.String()
		}
	}
	hrp, _, err := bech32.DecodeAndConvert(fl.Field().String())
	return err == nil && hrp == prefix
}

func validateGasPrice(fl validator.FieldLevel) bool {
	coin, err := sdk.ParseDecCoin(fl.Field().String())
	return err == nil && coin.IsPositive()
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:        5s
//	Query:       10s
//	BlockHeight: 5s
//	TxSubmit:    30s
//	TxWait:      60s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.Query == 0 {
		tt.Query = 10 * time.Second
	}
	if tt.BlockHeight == 0 {
		tt.BlockHeight = 5 * time.Second
	}
	if tt.TxSubmit == 0 {
		tt.TxSubmit = 30 * time.Second
	}
	if tt.TxWait == 0 {
		tt.TxWait = 60 * time.Second
	}
	return tt
}

// Load reads a YAML configuration file. The result is not validated.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConfiguration, err, "failed to read config file")
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration document. A network given only by name
// ("mainnet", "testnet", "local") is expanded to its predefined settings.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConfiguration, err, "failed to parse config")
	}
	if cfg.Network.ChainID == "" && cfg.Network.Name != "" {
		n, ok := NetworkByName(cfg.Network.Name)
		if !ok {
			return nil, sdkerrors.Configuration(fmt.Sprintf("unknown network %q", cfg.Network.Name))
		}
		cfg.Network = n
	}
	return &cfg, nil
}
