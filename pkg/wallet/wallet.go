// Package wallet derives signing identities for the HTTPay SDK from a BIP-39
// mnemonic, a raw secp256k1 private key or an externally supplied signer.
// Key material never leaves the Signer; callers only see the address, the
// public key and signatures.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/cosmos/go-bip39"
	dcrsecp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

const (
	// DefaultPrefix is the Neutron account prefix.
	DefaultPrefix = "neutron"
	// DefaultHDPath is the Cosmos coin type 118 derivation path, account 0.
	DefaultHDPath = "m/44'/118'/0'/0/0"
	// MinMnemonicWords is the shortest accepted mnemonic.
	MinMnemonicWords = 12
)

// Signer is a signing identity bound to one account address.
type Signer interface {
	// Address returns the bech32 account address.
	Address() string
	// PubKey returns the account public key placed in transaction signer infos.
	PubKey() cryptotypes.PubKey
	// Sign signs SIGN_MODE_DIRECT sign bytes.
	Sign(signBytes []byte) ([]byte, error)
}

// Capability tells whether a component can submit mutations.
type Capability int

const (
	ReadOnly Capability = iota
	Signing
)

func (c Capability) String() string {
	if c == Signing {
		return "signing"
	}
	return "read-only"
}

type options struct {
	prefix string
	hdPath string
}

// Option customizes derivation.
type Option func(*options)

// WithPrefix sets the bech32 account prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithHDPath overrides DefaultHDPath.
func WithHDPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.hdPath = path
		}
	}
}

func newOptions(opts []Option) options {
	o := options{prefix: DefaultPrefix, hdPath: DefaultHDPath}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// keySigner signs with an in-memory secp256k1 key.
type keySigner struct {
	priv    *secp256k1.PrivKey
	address string
}

func (k *keySigner) Address() string               { return k.address }
func (k *keySigner) PubKey() cryptotypes.PubKey    { return k.priv.PubKey() }
func (k *keySigner) Sign(b []byte) ([]byte, error) { return k.priv.Sign(b) }

// FromMnemonic derives the first account of a BIP-39 mnemonic.
func FromMnemonic(mnemonic string, opts ...Option) (Signer, error) {
	o := newOptions(opts)
	words := strings.Fields(mnemonic)
	if len(words) < MinMnemonicWords {
		return nil, sdkerrors.Wallet(nil, fmt.Sprintf("Invalid mnemonic. Must contain at least %d words.", MinMnemonicWords))
	}
	phrase := strings.Join(words, " ")
	if !bip39.IsMnemonicValid(phrase) {
		return nil, sdkerrors.Wallet(nil, "Invalid mnemonic. Checksum or word list mismatch.")
	}

	seed, err := hd.Secp256k1.Derive()(phrase, "", o.hdPath)
	if err != nil {
		return nil, sdkerrors.Wallet(err, "failed to derive key from mnemonic")
	}
	priv, ok := hd.Secp256k1.Generate()(seed).(*secp256k1.PrivKey)
	if !ok {
		return nil, sdkerrors.Wallet(nil, "unexpected key type derived from mnemonic")
	}
	return newKeySigner(priv, o.prefix)
}

// FromPrivateKey wraps a hex-encoded 32-byte secp256k1 key.
func FromPrivateKey(privateKeyHex string, opts ...Option) (Signer, error) {
	o := newOptions(opts)
	raw := strings.TrimPrefix(privateKeyHex, "0x")
	if len(raw) != 64 {
		return nil, sdkerrors.Wallet(nil, "Invalid private key. Must be a 64-character hex string.")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, sdkerrors.Wallet(nil, "Invalid private key. Must be a 64-character hex string.")
	}
	// The scalar must lie in [1, n-1] for the secp256k1 group order n.
	var k dcrsecp.ModNScalar
	if overflow := k.SetByteSlice(key); overflow || k.IsZero() {
		return nil, sdkerrors.Wallet(nil, "Invalid private key. Must be a non-zero scalar below the secp256k1 curve order.")
	}
	k.Zero()
	return newKeySigner(&secp256k1.PrivKey{Key: key}, o.prefix)
}

// FromSigner accepts an externally managed signer such as a keyring or HSM
// adapter. It only checks that the signer is usable.
func FromSigner(s Signer) (Signer, error) {
	if s == nil {
		return nil, sdkerrors.Wallet(nil, "signer is required")
	}
	if s.Address() == "" {
		return nil, sdkerrors.Wallet(nil, "signer has no account address")
	}
	if s.PubKey() == nil {
		return nil, sdkerrors.Wallet(nil, "signer has no public key")
	}
	return s, nil
}

// SignFunc signs sign bytes on behalf of an external signer.
type SignFunc func(signBytes []byte) ([]byte, error)

type externalSigner struct {
	address string
	pub     cryptotypes.PubKey
	sign    SignFunc
}

func (e *externalSigner) Address() string               { return e.address }
func (e *externalSigner) PubKey() cryptotypes.PubKey    { return e.pub }
func (e *externalSigner) Sign(b []byte) ([]byte, error) { return e.sign(b) }

// NewExternalSigner adapts a sign callback into a Signer.
func NewExternalSigner(address string, pub cryptotypes.PubKey, sign SignFunc) (Signer, error) {
	if sign == nil {
		return nil, sdkerrors.Wallet(nil, "sign function is required")
	}
	return FromSigner(&externalSigner{address: address, pub: pub, sign: sign})
}

func newKeySigner(priv *secp256k1.PrivKey, prefix string) (Signer, error) {
	addr, err := bech32.ConvertAndEncode(prefix, priv.PubKey().Address().Bytes())
	if err != nil {
		return nil, sdkerrors.Wallet(err, "failed to encode account address")
	}
	zap.L().Debug("wallet ready", zap.String("address", addr))
	return &keySigner{priv: priv, address: addr}, nil
}

// NewMnemonic returns a fresh 24-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", sdkerrors.Wallet(err, "failed to generate entropy")
	}
	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", sdkerrors.Wallet(err, "failed to generate mnemonic")
	}
	return m, nil
}

// IsValidAddress reports whether addr is a bech32 account address with the
// given prefix (DefaultPrefix when empty).
func IsValidAddress(addr, prefix string) bool {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	hrp, bz, err := bech32.DecodeAndConvert(addr)
	if err != nil || hrp != prefix {
		return false
	}
	return len(bz) == 20 || len(bz) == 32
}
