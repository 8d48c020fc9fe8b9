// Package sdk exposes the HTTPay facade: one value that owns the ledger
// connection and hands out the registry, escrow, verifier and usage reporter
// components configured for the same network.
package sdk

import (
	"context"
	"net/http"
	"sync"

	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/config"
	"github.com/httpay/httpay-sdk-go/pkg/escrow"
	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/payment"
	"github.com/httpay/httpay-sdk-go/pkg/registry"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"github.com/httpay/httpay-sdk-go/pkg/wallet"
	"go.uber.org/zap"
)

// errReadOnly is returned by every signing accessor of a read-only SDK.
const errReadOnly = "this method requires a signing client"

// logLevel is shared by the default global logger so that Config.Debug can
// raise verbosity after init.
var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) or WithLogger.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	rec     metrics.Recorder
	querier chain.Querier
	exec    chain.Executor
	signer  wallet.Signer
}

// WithLogger replaces the global zap logger used by every package.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records verifications, usage posts and transactions on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.rec = r }
}

// WithQuerier uses q instead of dialing Config.GRPCEndpoint.
func WithQuerier(q chain.Querier) Option {
	return func(o *options) { o.querier = q }
}

// WithExecutor makes the SDK signing through e. It also serves queries when
// no querier is given.
func WithExecutor(e chain.Executor) Option {
	return func(o *options) { o.exec = e }
}

// WithSigner signs with s instead of the mnemonic or key in Config.
func WithSigner(s wallet.Signer) Option {
	return func(o *options) { o.signer = s }
}

// SDK is the HTTPay facade. Read operations are safe for concurrent use.
// Transactions from one SDK share an account sequence and must not overlap.
type SDK struct {
	cfg     *config.Config
	rec     metrics.Recorder
	querier chain.Querier
	conn    *chain.GRPCClient // nil when the querier was injected

	escrow   *escrow.Client
	registry *registry.Client
	verifier *payment.Verifier

	mu             sync.RWMutex
	exec           chain.Executor
	escrowSigner   *escrow.SigningClient
	registrySigner *registry.SigningClient
	reporter       *payment.Reporter
}

// New validates cfg, connects to the ledger and builds the components. The
// SDK is signing when an executor or signer option is given, or when cfg
// carries a mnemonic or private key; otherwise it is read-only.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*SDK, error) {
	if cfg == nil {
		return nil, sdkerrors.Configuration("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		zap.ReplaceGlobals(o.logger)
	} else if cfg.Debug {
		logLevel.SetLevel(zap.DebugLevel)
	}

	s := &SDK{cfg: cfg, rec: metrics.Or(o.rec), querier: o.querier}
	if s.querier == nil && o.exec != nil {
		s.querier = o.exec
	}
	if s.querier == nil {
		conn, err := chain.Dial(ctx, cfg)
		if err != nil {
			return nil, sdkerrors.Normalize(err, "Failed to connect to gRPC endpoint")
		}
		s.conn = conn
		s.querier = conn
	}

	var err error
	if s.escrow, err = escrow.NewClient(s.querier, cfg.EscrowAddress, escrow.WithMetrics(s.rec)); err != nil {
		return nil, s.fail(err)
	}
	if s.registry, err = registry.NewClient(s.querier, cfg.RegistryAddress); err != nil {
		return nil, s.fail(err)
	}
	if s.verifier, err = payment.NewVerifier(s.escrow, payment.WithVerifierMetrics(s.rec)); err != nil {
		return nil, s.fail(err)
	}

	switch {
	case o.exec != nil:
		err = s.attach(o.exec)
	case o.signer != nil:
		err = s.ConnectWithSigner(o.signer)
	case cfg.HasSigningMaterial():
		err = s.connectFromConfig()
	}
	if err != nil {
		return nil, s.fail(err)
	}

	zap.L().Debug("sdk ready",
		zap.String("chain_id", cfg.ChainID),
		zap.String("escrow", cfg.EscrowAddress),
		zap.String("registry", cfg.RegistryAddress),
		zap.Stringer("capability", s.Capability()))
	return s, nil
}

func (s *SDK) fail(err error) error {
	_ = s.Close()
	return err
}

// connectFromConfig signs with the mnemonic or private key in the config.
// Validate guarantees at most one of them is set.
func (s *SDK) connectFromConfig() error {
	if s.cfg.Mnemonic != "" {
		return s.ConnectWithMnemonic(s.cfg.Mnemonic)
	}
	return s.ConnectWithPrivateKey(s.cfg.PrivateKey)
}

// ConnectWithMnemonic makes s signing with the first account of mnemonic.
func (s *SDK) ConnectWithMnemonic(mnemonic string) error {
	signer, err := wallet.FromMnemonic(mnemonic, wallet.WithPrefix(s.cfg.Bech32Prefix))
	if err != nil {
		return sdkerrors.Normalize(err, "Failed to connect with mnemonic")
	}
	return s.ConnectWithSigner(signer)
}

// ConnectWithPrivateKey makes s signing with a hex-encoded secp256k1 key.
func (s *SDK) ConnectWithPrivateKey(privateKeyHex string) error {
	signer, err := wallet.FromPrivateKey(privateKeyHex, wallet.WithPrefix(s.cfg.Bech32Prefix))
	if err != nil {
		return sdkerrors.Normalize(err, "Failed to connect with private key")
	}
	return s.ConnectWithSigner(signer)
}

// ConnectWithSigner makes s signing with an externally managed signer. It
// needs the gRPC connection opened by New.
func (s *SDK) ConnectWithSigner(signer wallet.Signer) error {
	signer, err := wallet.FromSigner(signer)
	if err != nil {
		return err
	}
	if s.conn == nil {
		return sdkerrors.Configuration("signing with a wallet requires a gRPC connection; use WithExecutor with an injected querier")
	}
	exec, err := chain.NewSigningClient(s.conn, signer)
	if err != nil {
		return err
	}
	return s.attach(exec)
}

func (s *SDK) attach(exec chain.Executor) error {
	// The signer shares the read client so that escrows seen by the
	// verifier bound usage reports locally.
	es, err := s.escrow.Signing(exec)
	if err != nil {
		return err
	}
	rs, err := registry.NewSigningClient(exec, s.cfg.RegistryAddress, registry.WithMetrics(s.rec))
	if err != nil {
		return err
	}
	rep, err := payment.NewReporter(es, payment.WithReporterMetrics(s.rec))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.exec, s.escrowSigner, s.registrySigner, s.reporter = exec, es, rs, rep
	s.mu.Unlock()
	zap.L().Info("signing enabled", zap.String("address", exec.Address()))
	return nil
}

// Capability reports whether s can submit mutations.
func (s *SDK) Capability() wallet.Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exec == nil {
		return wallet.ReadOnly
	}
	return wallet.Signing
}

// HasSigningCapability reports whether mutations are available.
func (s *SDK) HasSigningCapability() bool {
	return s.Capability() == wallet.Signing
}

// Address returns the signing account, or "" for a read-only SDK.
func (s *SDK) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exec == nil {
		return ""
	}
	return s.exec.Address()
}

// Config returns the validated configuration.
func (s *SDK) Config() *config.Config { return s.cfg }

// Escrow returns the read-only escrow client.
func (s *SDK) Escrow() *escrow.Client { return s.escrow }

// Registry returns the read-only registry client.
func (s *SDK) Registry() *registry.Client { return s.registry }

// Verifier returns the escrow verifier.
func (s *SDK) Verifier() *payment.Verifier { return s.verifier }

// EscrowSigner returns the signing escrow client.
func (s *SDK) EscrowSigner() (*escrow.SigningClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.escrowSigner == nil {
		return nil, sdkerrors.Configuration(errReadOnly)
	}
	return s.escrowSigner, nil
}

// RegistrySigner returns the signing registry client.
func (s *SDK) RegistrySigner() (*registry.SigningClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registrySigner == nil {
		return nil, sdkerrors.Configuration(errReadOnly)
	}
	return s.registrySigner, nil
}

// Reporter returns the usage reporter.
func (s *SDK) Reporter() (*payment.Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reporter == nil {
		return nil, sdkerrors.Configuration(errReadOnly)
	}
	return s.reporter, nil
}

// Middleware returns payment.Middleware bound to this SDK's verifier. The
// provider is the signing address unless cfg.Provider is set; a UsageFee
// callback requires signing capability.
func (s *SDK) Middleware(cfg payment.MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	cfg.Verifier = s.verifier
	if cfg.Provider == "" {
		cfg.Provider = s.Address()
	}
	if cfg.UsageFee != nil && cfg.Reporter == nil {
		rep, err := s.Reporter()
		if err != nil {
			return nil, err
		}
		cfg.Reporter = rep
	}
	return payment.Middleware(cfg)
}

// Close releases the gRPC connection opened by New. Injected queriers are
// left alone.
func (s *SDK) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
