package payment

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/httpay/httpay-sdk-go/internal/testutil/ledger"
	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

func TestVerifySentimentAPIScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	current := f.l.Height()

	res, err := f.caller.LockFunds(ctx, callerAddr, "sentiment-api", "1000000", "abc123", current+50,
		[]model.Coin{{Denom: "untrn", Amount: "1000000"}})
	if err != nil {
		t.Fatalf("LockFunds: %v", err)
	}
	id := strconv.FormatUint(*res.EscrowID, 10)

	got, err := f.verifier.Verify(ctx, VerifyParams{EscrowID: id, AuthToken: "abc123", ProviderAddr: providerAddr, BlockHeight: u64(current + 10)})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !got.IsValid || got.Escrow == nil || got.Escrow.EscrowID != *res.EscrowID || got.BlockHeight != current+10 {
		t.Fatalf("expected valid result, got %+v", got)
	}

	got, err = f.verifier.Verify(ctx, VerifyParams{EscrowID: id, AuthToken: "wrong", ProviderAddr: providerAddr, BlockHeight: u64(current + 10)})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.IsValid || got.Error != ReasonInvalidToken || got.Escrow != nil {
		t.Fatalf("expected token rejection, got %+v", got)
	}
}

func TestVerifyCheckOrder(t *testing.T) {
	f := newFixture(t)
	const height = 2000
	id := strconv.FormatUint(f.putEscrow("tok", "100", height), 10)
	stranger := ledger.Address("stranger")

	tests := []struct {
		name     string
		params   VerifyParams
		want     string
		wantPass bool
	}{
		{"malformed id wins", VerifyParams{EscrowID: "abc", AuthToken: "bad", ProviderAddr: stranger, BlockHeight: u64(height + 1)}, ReasonInvalidEscrowID, false},
		{"negative id", VerifyParams{EscrowID: "-1", AuthToken: "tok", ProviderAddr: providerAddr}, ReasonInvalidEscrowID, false},
		{"empty id", VerifyParams{EscrowID: "", AuthToken: "tok", ProviderAddr: providerAddr}, ReasonInvalidEscrowID, false},
		{"missing escrow", VerifyParams{EscrowID: "999", AuthToken: "tok", ProviderAddr: providerAddr, BlockHeight: u64(height)}, ReasonEscrowNotFound, false},
		{"expiry before provider and token", VerifyParams{EscrowID: id, AuthToken: "bad", ProviderAddr: stranger, BlockHeight: u64(height + 1)}, ReasonEscrowExpired, false},
		{"provider before token", VerifyParams{EscrowID: id, AuthToken: "bad", ProviderAddr: stranger, BlockHeight: u64(height)}, ReasonProviderMismatch, false},
		{"token", VerifyParams{EscrowID: id, AuthToken: "bad", ProviderAddr: providerAddr, BlockHeight: u64(height)}, ReasonInvalidToken, false},
		{"token is not trimmed", VerifyParams{EscrowID: id, AuthToken: " tok", ProviderAddr: providerAddr, BlockHeight: u64(height)}, ReasonInvalidToken, false},
		{"token prefix", VerifyParams{EscrowID: id, AuthToken: "to", ProviderAddr: providerAddr, BlockHeight: u64(height)}, ReasonInvalidToken, false},
		{"valid at expiry height", VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr, BlockHeight: u64(height)}, "", true},
		{"valid before expiry", VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr, BlockHeight: u64(1)}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.verifier.Verify(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got.IsValid != tt.wantPass || got.Error != tt.want {
				t.Fatalf("got %+v, want valid=%v error=%q", got, tt.wantPass, tt.want)
			}
		})
	}
}

func TestVerifyInvalidIDMakesNoLedgerCall(t *testing.T) {
	f := newFixture(t)
	if _, err := f.verifier.Verify(context.Background(), VerifyParams{EscrowID: "12x", AuthToken: "tok", ProviderAddr: providerAddr}); err != nil {
		t.Fatal(err)
	}
	if f.l.Calls() != 0 {
		t.Fatalf("ledger contacted %d times", f.l.Calls())
	}
}

func TestVerifyUsesLedgerHeightWhenUnset(t *testing.T) {
	f := newFixture(t, ledger.WithHeight(500))
	id := strconv.FormatUint(f.putEscrow("tok", "100", 500), 10)
	p := VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr}

	got, err := f.verifier.Verify(context.Background(), p)
	if err != nil || !got.IsValid || got.BlockHeight != 500 {
		t.Fatalf("at expiry height: %+v, %v", got, err)
	}

	f.l.Advance(1)
	got, err = f.verifier.Verify(context.Background(), p)
	if err != nil || got.IsValid || got.Error != ReasonEscrowExpired {
		t.Fatalf("one block later: %+v, %v", got, err)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "100", 1500), 10)
	p := VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr, BlockHeight: u64(1200)}

	first, err := f.verifier.Verify(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.verifier.Verify(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if first.IsValid != second.IsValid || first.Error != second.Error || first.BlockHeight != second.BlockHeight ||
		*first.Escrow != *second.Escrow {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if len(f.l.Executes()) != 0 || f.l.EscrowCount() != 1 {
		t.Fatal("verification must not mutate the ledger")
	}
}

func TestVerifyInfrastructureFailure(t *testing.T) {
	f := newFixture(t)
	id := strconv.FormatUint(f.putEscrow("tok", "100", 1500), 10)
	f.l.FailWith(sdkerrors.Network(errors.New("connection refused"), "query failed"))

	got, err := f.verifier.Verify(context.Background(), VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr})
	if err == nil {
		t.Fatalf("expected error, got result %+v", got)
	}
	if sdkerrors.KindOf(err) != sdkerrors.KindEscrowVerification {
		t.Fatalf("kind = %s", sdkerrors.KindOf(err))
	}
	if !errors.Is(err, sdkerrors.ErrNetwork) || !sdkerrors.IsRetryable(err) {
		t.Fatalf("network cause lost: %v", err)
	}
}

func TestVerifierMetrics(t *testing.T) {
	f := newFixture(t)
	rec := &countingRecorder{}
	v, _ := NewVerifier(f.verifier.escrows, WithVerifierMetrics(rec))
	id := strconv.FormatUint(f.putEscrow("tok", "100", 1500), 10)

	_, _ = v.Verify(context.Background(), VerifyParams{EscrowID: id, AuthToken: "tok", ProviderAddr: providerAddr})
	_, _ = v.Verify(context.Background(), VerifyParams{EscrowID: id, AuthToken: "nope", ProviderAddr: providerAddr})

	if rec.verifications[""] != 1 || rec.verifications[ReasonInvalidToken] != 1 {
		t.Fatalf("unexpected counts %v", rec.verifications)
	}
}

func TestNewVerifierRequiresReader(t *testing.T) {
	if _, err := NewVerifier(nil); !errors.Is(err, sdkerrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

var _ metrics.Recorder = (*countingRecorder)(nil)
