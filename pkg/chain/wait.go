package chain

import (
	"context"
	"errors"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// initialTxBackoff is the first delay between GetTx polls.
var initialTxBackoff = 500 * time.Millisecond

// WaitForTx polls GetTx with exponential backoff until the transaction is
// indexed, ctx is done, or a non-NotFound error occurs. If maxBackoff is
// non-zero, the delay will not exceed it. The returned response may carry a
// non-zero code; callers decide how to treat it.
func (c *GRPCClient) WaitForTx(ctx context.Context, hash string, maxBackoff time.Duration) (*sdk.TxResponse, error) {
	backoff := initialTxBackoff
	for {
		res, err := c.tx.GetTx(ctx, &txtypes.GetTxRequest{Hash: hash})
		switch {
		case err == nil && res.TxResponse != nil:
			return res.TxResponse, nil
		case err == nil, status.Code(err) == codes.NotFound:
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, sdkerrors.Network(ctx.Err(), "transaction "+hash+" not confirmed",
					sdkerrors.WithDetail(DetailTxHash, hash))
			}
			backoff *= 2
			if maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
			status.Code(err) == codes.DeadlineExceeded, status.Code(err) == codes.Canceled:
			return nil, sdkerrors.Network(err, "transaction "+hash+" not confirmed",
				sdkerrors.WithDetail(DetailTxHash, hash))
		default:
			return nil, classifyTransportError(err, "failed to query transaction "+hash)
		}
	}
}
