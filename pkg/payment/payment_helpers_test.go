package payment

import (
	"testing"

	"github.com/httpay/httpay-sdk-go/internal/testutil/ledger"
	"github.com/httpay/httpay-sdk-go/pkg/escrow"
	"github.com/httpay/httpay-sdk-go/pkg/model"
)

var (
	callerAddr   = ledger.Address("caller")
	providerAddr = ledger.Address("provider")
)

type fixture struct {
	l        *ledger.Ledger
	caller   *escrow.SigningClient
	provider *escrow.SigningClient
	verifier *Verifier
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	l := ledger.New(opts...)
	l.PutTool(model.Tool{ToolID: "sentiment-api", Provider: providerAddr, Price: "1000000", Endpoint: "https://sentiment.example.com", IsActive: true})

	c, err := escrow.NewSigningClient(l.Executor(callerAddr), l.EscrowAddr)
	if err != nil {
		t.Fatal(err)
	}
	p, err := escrow.NewSigningClient(l.Executor(providerAddr), l.EscrowAddr)
	if err != nil {
		t.Fatal(err)
	}
	ro, err := escrow.NewClient(l.Querier(), l.EscrowAddr)
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewVerifier(ro)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{l: l, caller: c, provider: p, verifier: v}
}

// putEscrow stores an escrow owned by callerAddr for providerAddr.
func (f *fixture) putEscrow(token string, maxFee string, expires uint64) uint64 {
	return f.l.PutEscrow(model.Escrow{
		Caller:    callerAddr,
		Provider:  providerAddr,
		MaxFee:    maxFee,
		AuthToken: token,
		Expires:   expires,
		Denom:     "untrn",
	})
}

func u64(v uint64) *uint64 { return &v }
