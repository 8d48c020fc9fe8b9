package sdk

import (
	"context"

	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/escrow"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/payment"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

// VerifyEscrow checks caller credentials against the ledger. Rejections are
// reported in the result; the error is reserved for infrastructure failures.
func (s *SDK) VerifyEscrow(ctx context.Context, p payment.VerifyParams) (model.VerificationResult, error) {
	res, err := s.verifier.Verify(ctx, p)
	if err != nil {
		return res, sdkerrors.Normalize(err, "Failed to verify escrow")
	}
	return res, nil
}

// PostUsage charges p.UsageFee against p.EscrowID on behalf of the signing
// account, which must be the escrow's provider.
func (s *SDK) PostUsage(ctx context.Context, p payment.PostUsageParams) (*payment.PostUsageResult, error) {
	rep, err := s.Reporter()
	if err != nil {
		return nil, err
	}
	res, err := rep.PostUsage(ctx, s.Address(), p)
	if err != nil {
		return nil, sdkerrors.Normalize(err, "Failed to post usage")
	}
	return res, nil
}

// LockFundsParams describe an escrow to open for ToolID.
type LockFundsParams struct {
	ToolID string
	// MaxFee is the amount locked, in base units of Denom.
	MaxFee string
	// AuthToken is generated with payment.NewAuthToken when empty.
	AuthToken string
	// Expires is the absolute expiry height. When zero it is computed as the
	// current height plus ExpiresInBlocks (escrow.MaxEscrowBlocks when zero).
	Expires         uint64
	ExpiresInBlocks uint64
	// Denom defaults to Config.Denom.
	Denom string
	Memo  string
}

// LockFundsResult extends escrow.LockFundsResult with what the caller needs
// to present to the provider.
type LockFundsResult struct {
	*escrow.LockFundsResult
	AuthToken string
	Expires   uint64
}

// LockFunds opens an escrow for the signing account.
func (s *SDK) LockFunds(ctx context.Context, p LockFundsParams) (*LockFundsResult, error) {
	es, err := s.EscrowSigner()
	if err != nil {
		return nil, err
	}

	token := p.AuthToken
	if token == "" {
		if token, err = payment.NewAuthToken(); err != nil {
			return nil, sdkerrors.Normalize(err, "Failed to generate auth token")
		}
	}
	expires := p.Expires
	if expires == 0 {
		blocks := p.ExpiresInBlocks
		if blocks == 0 {
			blocks = escrow.MaxEscrowBlocks
		}
		if expires, err = es.ExpiresIn(ctx, blocks); err != nil {
			return nil, sdkerrors.Normalize(err, "Failed to lock funds")
		}
	}
	denom := p.Denom
	if denom == "" {
		denom = s.cfg.Denom
	}

	var opts []chain.ExecOption
	if p.Memo != "" {
		opts = append(opts, chain.WithMemo(p.Memo))
	}
	res, err := es.LockFunds(ctx, s.Address(), p.ToolID, p.MaxFee, token, expires,
		[]model.Coin{{Denom: denom, Amount: p.MaxFee}}, opts...)
	if err != nil {
		return nil, sdkerrors.Normalize(err, "Failed to lock funds")
	}
	return &LockFundsResult{LockFundsResult: res, AuthToken: token, Expires: expires}, nil
}

// GetTool looks a tool up in the registry.
func (s *SDK) GetTool(ctx context.Context, toolID string) (*model.Tool, error) {
	t, err := s.registry.GetTool(ctx, toolID)
	if err != nil {
		return nil, sdkerrors.Normalize(err, "Failed to get tool")
	}
	return t, nil
}

// GetEscrow reads one escrow.
func (s *SDK) GetEscrow(ctx context.Context, escrowID uint64) (*model.Escrow, error) {
	e, err := s.escrow.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, sdkerrors.Normalize(err, "Failed to get escrow")
	}
	return e, nil
}

// FormatAmount renders a base-unit amount in display units using
// Config.Decimals, e.g. "1500000" becomes "1.500000".
func (s *SDK) FormatAmount(base string) string {
	return chain.FormatAmount(base, s.cfg.Decimals())
}

// ParseAmount converts a display amount such as "1.5" into base units.
func (s *SDK) ParseAmount(display string) (string, error) {
	v, err := chain.ToBaseUnits(display, s.cfg.Decimals())
	if err != nil {
		return "", sdkerrors.Normalize(err, "invalid amount")
	}
	return v.String(), nil
}
