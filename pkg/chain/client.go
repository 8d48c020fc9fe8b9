package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/x/tx/signing"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/std"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/httpay/httpay-sdk-go/pkg/config"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// GRPCClient is a read-only Querier backed by a Cosmos SDK gRPC endpoint.
type GRPCClient struct {
	conn     *grpc.ClientConn
	cdc      *codec.ProtoCodec
	txConfig client.TxConfig
	cfg      *config.Config

	wasm wasmtypes.QueryClient
	tx   txtypes.ServiceClient
	auth authtypes.QueryClient
	cmt  cmtservice.ServiceClient

	closeOnce sync.Once
}

var _ Querier = (*GRPCClient)(nil)

// NewCodec builds the proto codec used for gRPC and transaction encoding.
// Signer addresses are decoded with the given bech32 prefix.
func NewCodec(prefix string) (*codec.ProtoCodec, error) {
	registry, err := codectypes.NewInterfaceRegistryWithOptions(codectypes.InterfaceRegistryOptions{
		ProtoFiles: proto.HybridResolver,
		SigningOptions: signing.Options{
			AddressCodec:          address.NewBech32Codec(prefix),
			ValidatorAddressCodec: address.NewBech32Codec(prefix + "valoper"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build interface registry: %w", err)
	}
	std.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	wasmtypes.RegisterInterfaces(registry)
	return codec.NewProtoCodec(registry), nil
}

// Dial connects to cfg.GRPCEndpoint. cfg must be validated.
// "https://" endpoints use TLS; "http://" and bare host:port are insecure.
func Dial(ctx context.Context, cfg *config.Config) (*GRPCClient, error) {
	cdc, err := NewCodec(cfg.Bech32Prefix)
	if err != nil {
		return nil, sdkerrors.Configuration(err.Error())
	}

	addr, creds := grpcCredsFromEndpoint(cfg.GRPCEndpoint)
	conn, err := grpc.NewClient(addr, creds, grpc.WithDefaultCallOptions(grpc.ForceCodec(cdc.GRPCCodec())))
	if err != nil {
		zap.L().Error("failed to create grpc client", zap.String("endpoint", cfg.GRPCEndpoint), zap.Error(err))
		return nil, sdkerrors.Network(err, "failed to connect to "+cfg.GRPCEndpoint)
	}

	c := newGRPCClient(conn, cdc, cfg)

	// Probe the node so a wrong endpoint fails here rather than on first use.
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.WithDefaults().Dial)
	defer cancel()
	if _, err := c.LatestHeight(dialCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	zap.L().Debug("connected to ledger", zap.String("endpoint", cfg.GRPCEndpoint), zap.String("chain_id", cfg.ChainID))
	return c, nil
}

// NewGRPCClient wraps an existing connection. The connection must use the
// codec returned by NewCodec (grpc.ForceCodec(cdc.GRPCCodec())).
func NewGRPCClient(conn *grpc.ClientConn, cdc *codec.ProtoCodec, cfg *config.Config) *GRPCClient {
	return newGRPCClient(conn, cdc, cfg)
}

func newGRPCClient(conn *grpc.ClientConn, cdc *codec.ProtoCodec, cfg *config.Config) *GRPCClient {
	return &GRPCClient{
		conn:     conn,
		cdc:      cdc,
		txConfig: authtx.NewTxConfig(cdc, authtx.DefaultSignModes),
		cfg:      cfg,
		wasm:     wasmtypes.NewQueryClient(conn),
		tx:       txtypes.NewServiceClient(conn),
		auth:     authtypes.NewQueryClient(conn),
		cmt:      cmtservice.NewServiceClient(conn),
	}
}

// QuerySmart implements Querier.
func (c *GRPCClient) QuerySmart(ctx context.Context, contract string, msg any, out any) error {
	query, err := json.Marshal(msg)
	if err != nil {
		return sdkerrors.Contract(err, "failed to encode query")
	}

	ctx, cancel := c.withTimeout(ctx, c.timeouts().Query)
	defer cancel()

	res, err := c.wasm.SmartContractState(ctx, &wasmtypes.QuerySmartContractStateRequest{
		Address:   contract,
		QueryData: wasmtypes.RawContractMessage(query),
	})
	if err != nil {
		zap.L().Debug("smart query failed", zap.String("contract", contract), zap.ByteString("query", query), zap.Error(err))
		return classifyQueryError(err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return sdkerrors.Contract(err, "failed to decode query response")
	}
	return nil
}

// LatestHeight implements Querier.
func (c *GRPCClient) LatestHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx, c.timeouts().BlockHeight)
	defer cancel()

	res, err := c.cmt.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	if err != nil {
		zap.L().Error("failed to get latest block", zap.Error(err))
		return 0, classifyTransportError(err, "failed to get latest block height")
	}
	var height int64
	switch {
	case res.SdkBlock != nil:
		height = res.SdkBlock.Header.Height
	case res.Block != nil:
		height = res.Block.Header.Height
	}
	if height <= 0 {
		return 0, sdkerrors.Network(nil, "node returned no block height")
	}
	return uint64(height), nil
}

// Close shuts down the underlying gRPC connection. It is safe to call more than once.
func (c *GRPCClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

func (c *GRPCClient) timeouts() config.Timeouts {
	if c.cfg == nil {
		return config.Timeouts{}.WithDefaults()
	}
	return c.cfg.Timeouts.WithDefaults()
}

// withTimeout bounds ctx unless it already carries an earlier deadline.
func (c *GRPCClient) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
