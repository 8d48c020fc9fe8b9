package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/escrow"
	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

// PostUsageOptions tune the release transaction.
type PostUsageOptions struct {
	Memo string
	// GasLimit skips simulation when non-zero.
	GasLimit uint64
}

// PostUsageParams identify the escrow to charge and the fee.
type PostUsageParams struct {
	EscrowID string
	UsageFee string
	Options  *PostUsageOptions
}

// PostUsageResult describes the included release transaction.
type PostUsageResult struct {
	TxHash  string
	GasUsed int64
	Fee     string
}

// Reporter charges a usage fee against an escrow on behalf of the provider.
type Reporter struct {
	escrow *escrow.SigningClient
	rec    metrics.Recorder
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterMetrics counts usage reports on r.
func WithReporterMetrics(r metrics.Recorder) ReporterOption {
	return func(rep *Reporter) { rep.rec = metrics.Or(r) }
}

// NewReporter requires a signing escrow client.
func NewReporter(c *escrow.SigningClient, opts ...ReporterOption) (*Reporter, error) {
	if c == nil {
		return nil, sdkerrors.Configuration("this method requires a signing client")
	}
	r := &Reporter{escrow: c, rec: metrics.Noop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// PostUsage releases UsageFee from the escrow to sender, the provider. Any
// failure is returned as a UsageReporting error wrapping the cause.
func (r *Reporter) PostUsage(ctx context.Context, sender string, p PostUsageParams) (*PostUsageResult, error) {
	res, err := r.postUsage(ctx, sender, p)
	r.rec.ObserveUsage(metrics.Status(err))
	if err != nil {
		zap.L().Warn("usage report failed", zap.String("escrow_id", p.EscrowID), zap.String("usage_fee", p.UsageFee), zap.Error(err))
		return nil, sdkerrors.UsageReporting(err, "Failed to post usage")
	}
	return res, nil
}

func (r *Reporter) postUsage(ctx context.Context, sender string, p PostUsageParams) (*PostUsageResult, error) {
	id, err := strconv.ParseUint(p.EscrowID, 10, 64)
	if err != nil {
		return nil, sdkerrors.Contract(err, "invalid escrow id "+strconv.Quote(p.EscrowID),
			sdkerrors.WithDetail(escrow.DetailCheckedLocally, true))
	}

	var opts []chain.ExecOption
	if p.Options != nil {
		opts = append(opts, chain.WithMemo(p.Options.Memo))
		if p.Options.GasLimit > 0 {
			opts = append(opts, chain.WithGasLimit(p.Options.GasLimit))
		}
	}

	start := time.Now()
	tx, err := r.escrow.ReleaseFunds(ctx, sender, id, p.UsageFee, nil, opts...)
	if err != nil {
		return nil, err
	}
	zap.L().Info("usage posted",
		zap.Uint64("escrow_id", id),
		zap.String("usage_fee", p.UsageFee),
		zap.String("tx_hash", tx.TxHash),
		zap.Duration("elapsed", time.Since(start)))
	return &PostUsageResult{TxHash: tx.TxHash, GasUsed: tx.GasUsed, Fee: tx.Fee}, nil
}
