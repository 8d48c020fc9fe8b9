// Package chain is the ledger transport of the SDK. It runs CosmWasm smart
// queries and signs, broadcasts and confirms MsgExecuteContract transactions
// over the Cosmos SDK gRPC services, and reads the latest block height.
//
// Two capabilities are exposed: Querier for read-only access and Executor for
// signed mutations. Contract clients accept the narrowest one they need.
package chain

import (
	"context"

	"github.com/httpay/httpay-sdk-go/pkg/model"
)

// Querier is the read-only ledger capability.
type Querier interface {
	// QuerySmart JSON-encodes msg, runs it against contract and decodes the
	// JSON response into out (skipped when out is nil).
	QuerySmart(ctx context.Context, contract string, msg any, out any) error
	// LatestHeight returns the height of the latest committed block.
	LatestHeight(ctx context.Context) (uint64, error)
}

// Executor is the signing ledger capability. Mutations from one Executor
// must be serialized by the caller: concurrent calls race on the account
// sequence number.
type Executor interface {
	Querier
	// Address is the account that signs every transaction.
	Address() string
	// Execute sends msg to contract with funds attached, waits for inclusion
	// and returns the result. sender must equal Address.
	Execute(ctx context.Context, sender, contract string, msg any, funds []model.Coin, opts ...ExecOption) (*TxResult, error)
}

// TxResult describes an included transaction.
type TxResult struct {
	TxHash    string
	Height    int64
	GasWanted int64
	GasUsed   int64
	// Fee is the fee paid, e.g. "1234untrn". Empty when unknown.
	Fee    string
	Events []Event
}

// Event is an ABCI event emitted while executing a transaction.
type Event struct {
	Type       string
	Attributes []Attribute
}

// Attribute is a key/value pair inside an Event.
type Attribute struct {
	Key   string
	Value string
}

// FindEventAttribute returns the value of the first attribute named key in an
// event of type eventType. Event logs are unstructured; a miss does not mean
// the transaction failed.
func FindEventAttribute(events []Event, eventType, key string) (string, bool) {
	for _, ev := range events {
		if ev.Type != eventType {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}

// ExecOptions tune a single Execute call.
type ExecOptions struct {
	Memo string
	// GasLimit skips simulation when non-zero.
	GasLimit uint64
}

// ExecOption mutates ExecOptions.
type ExecOption func(*ExecOptions)

// WithMemo sets the transaction memo.
func WithMemo(memo string) ExecOption {
	return func(o *ExecOptions) { o.Memo = memo }
}

// WithGasLimit fixes the gas limit instead of simulating.
func WithGasLimit(gas uint64) ExecOption {
	return func(o *ExecOptions) { o.GasLimit = gas }
}

// ApplyExecOptions folds opts into an ExecOptions value.
func ApplyExecOptions(opts []ExecOption) ExecOptions {
	var o ExecOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
