//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/httpay/httpay-sdk-go/pkg/config"
	"github.com/httpay/httpay-sdk-go/pkg/payment"
	"github.com/httpay/httpay-sdk-go/pkg/sdk"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

// newSDK builds a facade against the node named by HTTPAY_GRPC_ENDPOINT. The
// contract addresses come from HTTPAY_ESCROW_ADDRESS and
// HTTPAY_REGISTRY_ADDRESS; HTTPAY_MNEMONIC enables signing.
func newSDK(t *testing.T) *sdk.SDK {
	t.Helper()
	endpoint := os.Getenv("HTTPAY_GRPC_ENDPOINT")
	if endpoint == "" {
		t.Skip("HTTPAY_GRPC_ENDPOINT not set")
	}
	cfg := &config.Config{
		Network:         config.Local,
		GRPCEndpoint:    endpoint,
		ChainID:         os.Getenv("HTTPAY_CHAIN_ID"),
		EscrowAddress:   os.Getenv("HTTPAY_ESCROW_ADDRESS"),
		RegistryAddress: os.Getenv("HTTPAY_REGISTRY_ADDRESS"),
		Mnemonic:        os.Getenv("HTTPAY_MNEMONIC"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := sdk.New(ctx, cfg)
	if err != nil {
		t.Fatalf("sdk.New error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLedgerHeight(t *testing.T) {
	s := newSDK(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := s.Escrow().CurrentHeight(ctx)
	if err != nil {
		t.Fatalf("CurrentHeight error: %v", err)
	}
	if h == 0 {
		t.Fatal("zero height")
	}
	cfg, err := s.Escrow().GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig error: %v", err)
	}
	if cfg.RegistryAddr != s.Config().RegistryAddress {
		t.Fatalf("escrow points at registry %s, configured %s", cfg.RegistryAddr, s.Config().RegistryAddress)
	}
}

func TestUnknownEscrow(t *testing.T) {
	s := newSDK(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.VerifyEscrow(ctx, payment.VerifyParams{EscrowID: "18446744073709551615", AuthToken: "x", ProviderAddr: s.Config().EscrowAddress})
	if err != nil {
		t.Fatalf("VerifyEscrow error: %v", err)
	}
	if res.IsValid || res.Error != payment.ReasonEscrowNotFound {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := s.GetTool(ctx, "no-such-tool"); sdkerrors.KindOf(err) != sdkerrors.KindNotFound {
		t.Fatalf("GetTool error: %v", err)
	}
}

func TestLockAndRefund(t *testing.T) {
	s := newSDK(t)
	toolID := os.Getenv("HTTPAY_TOOL_ID")
	if !s.HasSigningCapability() || toolID == "" {
		t.Skip("HTTPAY_MNEMONIC or HTTPAY_TOOL_ID not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tool, err := s.GetTool(ctx, toolID)
	if err != nil {
		t.Fatalf("GetTool error: %v", err)
	}
	lock, err := s.LockFunds(ctx, sdk.LockFundsParams{ToolID: toolID, MaxFee: tool.Price, Denom: tool.Denom, ExpiresInBlocks: 1})
	if err != nil {
		t.Fatalf("LockFunds error: %v", err)
	}
	if lock.EscrowID == nil {
		t.Fatalf("escrow id not reported by tx %s", lock.TxHash)
	}

	for {
		h, err := s.Escrow().CurrentHeight(ctx)
		if err != nil {
			t.Fatalf("CurrentHeight error: %v", err)
		}
		if h > lock.Expires {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("escrow did not expire in time")
		case <-time.After(time.Second):
		}
	}

	es, err := s.EscrowSigner()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := es.RefundExpired(ctx, s.Address(), *lock.EscrowID); err != nil {
		t.Fatalf("RefundExpired error: %v", err)
	}
}
