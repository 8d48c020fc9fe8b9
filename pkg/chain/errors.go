package chain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Detail keys attached to transaction errors.
const (
	DetailTxHash    = "txHash"
	DetailCode      = "code"
	DetailCodespace = "codespace"
	DetailRawLog    = "rawLog"
)

func isTransportCode(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return true
	}
	return false
}

// classifyTransportError maps failures of node-level RPCs (blocks, accounts,
// broadcast) onto the SDK taxonomy.
func classifyTransportError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := sdkerrors.From(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sdkerrors.Network(err, msg)
	}
	if st, ok := status.FromError(err); ok && isTransportCode(st.Code()) {
		return sdkerrors.Network(err, msg)
	}
	return sdkerrors.Normalize(fmt.Errorf("%s: %w", msg, err), msg)
}

// missingRecord matches the texts the escrow and registry contracts use for
// an absent escrow or tool. Other "not found" messages (unknown contract,
// codec lookups) are not missing records.
var missingRecord = regexp.MustCompile(`\b(Escrow( \d+)?|Tool) not found\b`)

// IsMissingRecord reports whether a contract error message says the queried
// escrow or tool does not exist.
func IsMissingRecord(msg string) bool {
	return missingRecord.MatchString(msg)
}

// classifyQueryError maps a failed smart query. Missing escrows and tools
// become KindNotFound; every other contract-side failure, including an
// unknown contract address, is KindContract.
func classifyQueryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sdkerrors.Network(err, "query timed out")
	}
	st, ok := status.FromError(err)
	if !ok {
		return classifyTransportError(err, "query failed")
	}
	if isTransportCode(st.Code()) {
		return sdkerrors.Network(err, "query failed")
	}
	if IsMissingRecord(st.Message()) {
		return sdkerrors.NotFound(st.Message(), sdkerrors.WithDetail(sdkerrors.DetailOriginalError, err.Error()))
	}
	return sdkerrors.Contract(err, "query wasm contract failed")
}

// classifySimulateError maps a failed simulation. Simulation runs the contract,
// so ledger rejections such as an excessive usage fee surface here.
func classifySimulateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sdkerrors.Network(err, "simulation timed out")
	}
	if st, ok := status.FromError(err); ok && isTransportCode(st.Code()) {
		return sdkerrors.Network(err, "simulation failed")
	}
	if st, ok := status.FromError(err); ok {
		if strings.Contains(st.Message(), "account sequence mismatch") {
			return sdkerrors.Wallet(err, "account sequence mismatch; serialize transactions per signer")
		}
		return sdkerrors.Contract(errors.New(st.Message()), "execute wasm contract failed",
			sdkerrors.WithDetail(sdkerrors.DetailOriginalError, err.Error()))
	}
	return classifyTransportError(err, "simulation failed")
}

// txError converts a non-zero transaction result into a ContractError.
func txError(res *sdk.TxResponse) error {
	return sdkerrors.Contract(errors.New(res.RawLog), "transaction failed",
		sdkerrors.WithDetail(DetailTxHash, res.TxHash),
		sdkerrors.WithDetail(DetailCode, res.Code),
		sdkerrors.WithDetail(DetailCodespace, res.Codespace),
		sdkerrors.WithDetail(DetailRawLog, res.RawLog),
	)
}
