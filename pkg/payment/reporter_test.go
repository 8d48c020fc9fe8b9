package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/httpay/httpay-sdk-go/internal/testutil/ledger"
	"github.com/httpay/httpay-sdk-go/pkg/escrow"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

func TestPostUsage(t *testing.T) {
	f := newFixture(t, ledger.WithFeePercentage(10))
	id := f.putEscrow("tok", "1000", 1050)
	rec := &countingRecorder{}
	r, err := NewReporter(f.provider, WithReporterMetrics(rec))
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.PostUsage(context.Background(), providerAddr, PostUsageParams{
		EscrowID: strconv.FormatUint(id, 10),
		UsageFee: "600",
	})
	if err != nil {
		t.Fatalf("PostUsage: %v", err)
	}
	if res.TxHash == "" || res.GasUsed == 0 || !strings.HasSuffix(res.Fee, "untrn") {
		t.Fatalf("incomplete result %+v", res)
	}
	if got := f.l.Received(providerAddr, "untrn"); got != "540" {
		t.Fatalf("provider received %s, want 540", got)
	}
	if got := f.l.Received(callerAddr, "untrn"); got != "400" {
		t.Fatalf("caller refunded %s, want 400", got)
	}
	if f.l.EscrowCount() != 0 {
		t.Fatal("escrow should be consumed")
	}
	if rec.usage["ok"] != 1 {
		t.Fatalf("usage counts %v", rec.usage)
	}
}

func TestPostUsageForwardsOptions(t *testing.T) {
	f := newFixture(t)
	id := f.putEscrow("tok", "1000", 1050)
	r, _ := NewReporter(f.provider)

	_, err := r.PostUsage(context.Background(), providerAddr, PostUsageParams{
		EscrowID: strconv.FormatUint(id, 10),
		UsageFee: "1000",
		Options:  &PostUsageOptions{Memo: "request 42", GasLimit: 250000},
	})
	if err != nil {
		t.Fatal(err)
	}
	execs := f.l.Executes()
	if len(execs) != 1 {
		t.Fatalf("%d executes", len(execs))
	}
	if execs[0].Options.Memo != "request 42" || execs[0].Options.GasLimit != 250000 {
		t.Fatalf("options not forwarded: %+v", execs[0].Options)
	}
	if len(execs[0].Funds) != 0 {
		t.Fatalf("release must not attach funds: %v", execs[0].Funds)
	}
}

func TestPostUsageFailures(t *testing.T) {
	tests := []struct {
		name      string
		escrowID  string
		fee       string
		sender    string
		wantCause error
		wantText  string
		wantCalls int
	}{
		{"fee above max fee", "", "1001", providerAddr, sdkerrors.ErrContract, "Usage fee exceeds max fee: max 1000, requested 1001", 1},
		{"non numeric id", "x1", "10", providerAddr, sdkerrors.ErrContract, "invalid escrow id", 0},
		{"unknown escrow", "77", "10", providerAddr, sdkerrors.ErrContract, "Escrow not found", 1},
		{"wrong signer", "", "10", callerAddr, sdkerrors.ErrWallet, "does not match sender", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := strconv.FormatUint(f.putEscrow("tok", "1000", 1050), 10)
			if tt.escrowID != "" {
				id = tt.escrowID
			}
			r, _ := NewReporter(f.provider)

			_, err := r.PostUsage(context.Background(), tt.sender, PostUsageParams{EscrowID: id, UsageFee: tt.fee})
			if err == nil {
				t.Fatal("expected error")
			}
			if sdkerrors.KindOf(err) != sdkerrors.KindUsageReporting {
				t.Fatalf("kind = %s (%v)", sdkerrors.KindOf(err), err)
			}
			if !errors.Is(err, tt.wantCause) {
				t.Fatalf("cause %v not in chain: %v", tt.wantCause, err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Fatalf("error %q does not mention %q", err, tt.wantText)
			}
			if f.l.EscrowCount() != 1 {
				t.Fatal("escrow must survive a failed report")
			}
			// Wallet rejections happen in the signer, before the ledger sees the call.
			if n := len(f.l.Executes()); n != tt.wantCalls {
				t.Fatalf("executes = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestPostUsageLocalMaxFeeCheck(t *testing.T) {
	f := newFixture(t)
	id := f.putEscrow("tok", "1000", 1050)
	if _, err := f.provider.GetEscrow(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	r, _ := NewReporter(f.provider)

	_, err := r.PostUsage(context.Background(), providerAddr, PostUsageParams{EscrowID: strconv.FormatUint(id, 10), UsageFee: "5000"})
	if !errors.Is(err, sdkerrors.ErrContract) {
		t.Fatalf("expected contract cause, got %v", err)
	}
	e, _ := sdkerrors.From(errors.Unwrap(err))
	if e == nil {
		t.Fatalf("no typed cause in %v", err)
	}
	if v, _ := e.Detail(escrow.DetailCheckedLocally); v != true {
		t.Fatalf("expected local rejection, details %v", e.Details)
	}
	if len(f.l.Executes()) != 0 {
		t.Fatal("locally rejected release reached the ledger")
	}
}

func TestNewReporterRequiresSigner(t *testing.T) {
	_, err := NewReporter(nil)
	if !errors.Is(err, sdkerrors.ErrConfiguration) || !strings.Contains(err.Error(), "signing client") {
		t.Fatalf("got %v", err)
	}
}
