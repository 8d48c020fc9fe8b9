// Package escrow is the client of the HTTPay escrow contract: locking funds
// for a tool call, releasing the usage fee to the provider, refunding expired
// escrows and reading escrow and fee state.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

// MaxEscrowBlocks is the furthest in the future, in blocks, that an escrow
// may expire. The contract rejects anything beyond it.
const MaxEscrowBlocks = 50

// DetailCheckedLocally marks a ContractError raised before contacting the ledger.
const DetailCheckedLocally = "checkedLocally"

// Client runs read-only escrow queries.
type Client struct {
	q        chain.Querier
	contract string
	rec      metrics.Recorder

	// maxFees remembers max_fee per escrow id from fetched snapshots.
	maxFees sync.Map
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records executions on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) { c.rec = metrics.Or(r) }
}

// NewClient returns a query client for the escrow contract at contract.
func NewClient(q chain.Querier, contract string, opts ...Option) (*Client, error) {
	if q == nil {
		return nil, sdkerrors.Configuration("ledger querier is required")
	}
	if contract == "" {
		return nil, sdkerrors.Configuration("Escrow contract address is required in configuration")
	}
	c := &Client{q: q, contract: contract, rec: metrics.Noop{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Contract returns the escrow contract address.
func (c *Client) Contract() string { return c.contract }

// GetEscrow fetches a single escrow. A missing escrow yields a NotFound error.
func (c *Client) GetEscrow(ctx context.Context, escrowID uint64) (*model.Escrow, error) {
	var e model.Escrow
	err := c.q.QuerySmart(ctx, c.contract, queryMsg{GetEscrow: &getEscrowQuery{EscrowID: escrowID}}, &e)
	if err != nil {
		if errors.Is(err, sdkerrors.ErrNotFound) {
			return nil, sdkerrors.NotFound(fmt.Sprintf("Escrow %d not found", escrowID),
				sdkerrors.WithDetail(sdkerrors.DetailOriginalError, err.Error()))
		}
		return nil, sdkerrors.Normalize(err, "failed to query escrow")
	}
	if e.EscrowID == 0 {
		e.EscrowID = escrowID
	}
	c.remember(&e)
	zap.L().Debug("escrow fetched", zap.Uint64("escrow_id", escrowID), zap.Uint64("expires", e.Expires))
	return &e, nil
}

// EscrowFilter narrows GetEscrows. Nil fields are omitted from the query.
type EscrowFilter struct {
	Caller     *string
	Provider   *string
	StartAfter *uint64
	Limit      *uint32
}

// GetEscrows lists escrows in ascending id order. Entries at or below
// StartAfter are discarded even if the ledger returns them, so feeding the
// last id back as StartAfter always makes progress.
func (c *Client) GetEscrows(ctx context.Context, f EscrowFilter) ([]model.Escrow, error) {
	var res escrowsResponse
	q := queryMsg{GetEscrows: &getEscrowsQuery{
		Caller:     f.Caller,
		Provider:   f.Provider,
		StartAfter: f.StartAfter,
		Limit:      f.Limit,
	}}
	if err := c.q.QuerySmart(ctx, c.contract, q, &res); err != nil {
		return nil, sdkerrors.Normalize(err, "failed to list escrows")
	}
	out := make([]model.Escrow, 0, len(res.Escrows))
	for i := range res.Escrows {
		e := res.Escrows[i]
		if f.StartAfter != nil && e.EscrowID <= *f.StartAfter {
			continue
		}
		c.remember(&e)
		out = append(out, e)
	}
	return out, nil
}

// GetCollectedFees returns the contract's platform fee ledger.
func (c *Client) GetCollectedFees(ctx context.Context) (*model.CollectedFees, error) {
	var fees model.CollectedFees
	if err := c.q.QuerySmart(ctx, c.contract, queryMsg{GetCollectedFees: &struct{}{}}, &fees); err != nil {
		return nil, sdkerrors.Normalize(err, "failed to query collected fees")
	}
	return &fees, nil
}

// GetConfig returns the contract configuration.
func (c *Client) GetConfig(ctx context.Context) (*model.EscrowConfig, error) {
	var cfg model.EscrowConfig
	if err := c.q.QuerySmart(ctx, c.contract, queryMsg{GetConfig: &struct{}{}}, &cfg); err != nil {
		return nil, sdkerrors.Normalize(err, "failed to query escrow config")
	}
	return &cfg, nil
}

// CurrentHeight returns the ledger's latest block height.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	h, err := c.q.LatestHeight(ctx)
	if err != nil {
		return 0, sdkerrors.Normalize(err, "failed to get block height")
	}
	return h, nil
}

// ExpiresIn returns the expiry height blocks from now. blocks must not
// exceed MaxEscrowBlocks.
func (c *Client) ExpiresIn(ctx context.Context, blocks uint64) (uint64, error) {
	if blocks > MaxEscrowBlocks {
		return 0, sdkerrors.Contract(nil,
			fmt.Sprintf("Escrow expiration too far in future: max %d blocks, got %d blocks", MaxEscrowBlocks, blocks),
			sdkerrors.WithDetail(DetailCheckedLocally, true))
	}
	h, err := c.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}
	return h + blocks, nil
}

func (c *Client) remember(e *model.Escrow) {
	fee, err := model.ParseUint128(e.MaxFee)
	if err != nil {
		return
	}
	c.maxFees.Store(e.EscrowID, fee)
}

func (c *Client) knownMaxFee(id uint64) (sdkmath.Uint, bool) {
	v, ok := c.maxFees.Load(id)
	if !ok {
		return sdkmath.Uint{}, false
	}
	return v.(sdkmath.Uint), true
}

// SigningClient adds the escrow mutations. Calls from one SigningClient must
// not overlap: they share the signer's account sequence.
type SigningClient struct {
	*Client
	exec chain.Executor
}

// NewSigningClient returns a client that signs with exec.
func NewSigningClient(exec chain.Executor, contract string, opts ...Option) (*SigningClient, error) {
	if exec == nil {
		return nil, sdkerrors.Configuration("this method requires a signing client")
	}
	c, err := NewClient(exec, contract, opts...)
	if err != nil {
		return nil, err
	}
	return c.Signing(exec)
}

// Signing returns a signing client that shares c's querier and max-fee
// cache, so escrows fetched through c are checked locally on release.
func (c *Client) Signing(exec chain.Executor) (*SigningClient, error) {
	if exec == nil {
		return nil, sdkerrors.Configuration("this method requires a signing client")
	}
	return &SigningClient{Client: c, exec: exec}, nil
}

// Address is the signing account.
func (s *SigningClient) Address() string { return s.exec.Address() }

// LockFundsResult describes a successful lock. EscrowID is nil when the
// transaction succeeded but the id could not be read from its events.
type LockFundsResult struct {
	TxHash   string
	EscrowID *uint64
	Denom    string
	Tx       *chain.TxResult
}

// LockFunds locks maxFee for toolID until block expires. funds must be a
// single coin of exactly maxFee.
func (s *SigningClient) LockFunds(ctx context.Context, caller, toolID, maxFee, authToken string, expires uint64, funds []model.Coin, opts ...chain.ExecOption) (*LockFundsResult, error) {
	fee, err := model.ParseUint128(maxFee)
	if err != nil {
		return nil, localContractError(fmt.Sprintf("invalid max fee %q", maxFee), err)
	}
	if len(funds) != 1 {
		return nil, localContractError(fmt.Sprintf("funds must be exactly one coin matching max fee %s, got %d coins", maxFee, len(funds)), nil)
	}
	sent, err := model.ParseUint128(funds[0].Amount)
	if err != nil || !sent.Equal(fee) {
		return nil, localContractError(fmt.Sprintf("funds amount %s%s does not match max fee %s", funds[0].Amount, funds[0].Denom, maxFee), err)
	}

	msg := executeMsg{LockFunds: &lockFundsMsg{
		ToolID:    toolID,
		MaxFee:    fee.String(),
		AuthToken: authToken,
		Expires:   expires,
	}}
	res, err := s.execute(ctx, "lock_funds", caller, msg, funds, opts)
	if err != nil {
		return nil, err
	}

	out := &LockFundsResult{TxHash: res.TxHash, Denom: funds[0].Denom, Tx: res}
	raw, ok := chain.FindEventAttribute(res.Events, "wasm", "escrow_id")
	if !ok {
		zap.L().Warn("escrow id not found in lock_funds events", zap.String("tx_hash", res.TxHash))
		return out, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		zap.L().Warn("unparsable escrow id in lock_funds events", zap.String("tx_hash", res.TxHash), zap.String("escrow_id", raw))
		return out, nil
	}
	out.EscrowID = &id
	s.maxFees.Store(id, fee)
	zap.L().Info("funds locked", zap.Uint64("escrow_id", id), zap.String("tool_id", toolID), zap.String("max_fee", fee.String()), zap.Uint64("expires", expires))
	return out, nil
}

// ReleaseFunds claims usageFee from escrowID for the provider; the remainder
// returns to the caller. If the escrow's max_fee is known from an earlier
// fetch, an excessive fee is refused without sending anything.
func (s *SigningClient) ReleaseFunds(ctx context.Context, provider string, escrowID uint64, usageFee string, funds []model.Coin, opts ...chain.ExecOption) (*chain.TxResult, error) {
	fee, err := model.ParseUint128(usageFee)
	if err != nil {
		return nil, localContractError(fmt.Sprintf("invalid usage fee %q", usageFee), err)
	}
	if maxFee, ok := s.knownMaxFee(escrowID); ok && fee.GT(maxFee) {
		return nil, localContractError(fmt.Sprintf("Usage fee exceeds max fee: max %s, requested %s", maxFee, fee), nil)
	}

	msg := executeMsg{Release: &releaseMsg{EscrowID: escrowID, UsageFee: fee.String()}}
	res, err := s.execute(ctx, "release", provider, msg, funds, opts)
	if err != nil {
		return nil, err
	}
	s.maxFees.Delete(escrowID)
	zap.L().Info("funds released", zap.Uint64("escrow_id", escrowID), zap.String("usage_fee", fee.String()), zap.String("tx_hash", res.TxHash))
	return res, nil
}

// RefundExpired returns the locked funds of an expired escrow to its caller.
// Expiry is checked by the ledger only.
func (s *SigningClient) RefundExpired(ctx context.Context, caller string, escrowID uint64, opts ...chain.ExecOption) (*chain.TxResult, error) {
	msg := executeMsg{RefundExpired: &refundExpiredMsg{EscrowID: escrowID}}
	res, err := s.execute(ctx, "refund_expired", caller, msg, nil, opts)
	if err != nil {
		return nil, err
	}
	s.maxFees.Delete(escrowID)
	return res, nil
}

// ClaimFees withdraws collected platform fees to the contract owner. A nil
// denom claims every denom.
func (s *SigningClient) ClaimFees(ctx context.Context, owner string, denom *string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "claim_fees", owner, executeMsg{ClaimFees: &claimFeesMsg{Denom: denom}}, nil, opts)
}

func (s *SigningClient) execute(ctx context.Context, op, sender string, msg executeMsg, funds []model.Coin, opts []chain.ExecOption) (*chain.TxResult, error) {
	start := time.Now()
	res, err := s.exec.Execute(ctx, sender, s.contract, msg, funds, opts...)
	s.rec.ObserveTx(op, metrics.Status(err), time.Since(start))
	if err != nil {
		zap.L().Debug("escrow execute failed", zap.String("op", op), zap.String("sender", sender), zap.Error(err))
		return nil, sdkerrors.Normalize(err, op+" failed")
	}
	return res, nil
}

func localContractError(msg string, cause error) error {
	return sdkerrors.Contract(cause, msg, sdkerrors.WithDetail(DetailCheckedLocally, true))
}
