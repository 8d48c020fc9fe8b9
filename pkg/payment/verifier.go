package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"

	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

// Reasons reported in VerificationResult.Error.
const (
	ReasonInvalidEscrowID  = "Invalid escrow ID"
	ReasonEscrowNotFound   = "Escrow not found"
	ReasonEscrowExpired    = "Escrow expired"
	ReasonProviderMismatch = "Provider mismatch"
	ReasonInvalidToken     = "Invalid authentication token"
)

// EscrowReader is the read access the Verifier needs. *escrow.Client implements it.
type EscrowReader interface {
	GetEscrow(ctx context.Context, escrowID uint64) (*model.Escrow, error)
	CurrentHeight(ctx context.Context) (uint64, error)
}

// VerifyParams are the credentials presented by a caller.
type VerifyParams struct {
	// EscrowID is the decimal escrow id as received, e.g. from a header.
	EscrowID     string
	AuthToken    string
	ProviderAddr string
	// BlockHeight pins the height used for the expiry check. When nil the
	// ledger's latest height is used.
	BlockHeight *uint64
}

// Verifier decides whether an escrow authorizes a request.
type Verifier struct {
	escrows EscrowReader
	rec     metrics.Recorder
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierMetrics counts verification results on r.
func WithVerifierMetrics(r metrics.Recorder) VerifierOption {
	return func(v *Verifier) { v.rec = metrics.Or(r) }
}

// NewVerifier returns a Verifier reading escrows through r.
func NewVerifier(r EscrowReader, opts ...VerifierOption) (*Verifier, error) {
	if r == nil {
		return nil, sdkerrors.Configuration("escrow client is required")
	}
	v := &Verifier{escrows: r, rec: metrics.Noop{}}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks, in order and stopping at the first failure: escrow id
// syntax, existence, expiry (an escrow is valid up to and including its
// expires height), provider, auth token. Failed checks are reported in the
// result; the error is reserved for ledger or transport failures.
func (v *Verifier) Verify(ctx context.Context, p VerifyParams) (model.VerificationResult, error) {
	id, err := strconv.ParseUint(p.EscrowID, 10, 64)
	if err != nil {
		return v.reject(ReasonInvalidEscrowID, p.EscrowID), nil
	}

	e, err := v.escrows.GetEscrow(ctx, id)
	if err != nil {
		if errors.Is(err, sdkerrors.ErrNotFound) {
			return v.reject(ReasonEscrowNotFound, p.EscrowID), nil
		}
		return model.VerificationResult{}, sdkerrors.EscrowVerification(err, "Failed to verify escrow")
	}

	var height uint64
	if p.BlockHeight != nil {
		height = *p.BlockHeight
	} else if height, err = v.escrows.CurrentHeight(ctx); err != nil {
		return model.VerificationResult{}, sdkerrors.EscrowVerification(err, "Failed to verify escrow")
	}

	if e.Expires < height {
		return v.reject(ReasonEscrowExpired, p.EscrowID), nil
	}
	if e.Provider != p.ProviderAddr {
		return v.reject(ReasonProviderMismatch, p.EscrowID), nil
	}
	if subtle.ConstantTimeCompare([]byte(e.AuthToken), []byte(p.AuthToken)) != 1 {
		return v.reject(ReasonInvalidToken, p.EscrowID), nil
	}

	v.rec.ObserveVerification("")
	return model.VerificationResult{IsValid: true, Escrow: e, BlockHeight: height}, nil
}

func (v *Verifier) reject(reason, escrowID string) model.VerificationResult {
	zap.L().Debug("escrow rejected", zap.String("escrow_id", escrowID), zap.String("reason", reason))
	v.rec.ObserveVerification(reason)
	return model.Invalid(reason)
}
