package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"github.com/httpay/httpay-sdk-go/pkg/wallet"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SigningClient is an Executor: a GRPCClient plus the signer that pays for
// and authorizes every transaction.
type SigningClient struct {
	*GRPCClient
	signer wallet.Signer
}

var _ Executor = (*SigningClient)(nil)

// NewSigningClient binds signer to c. A nil signer is a configuration error.
func NewSigningClient(c *GRPCClient, signer wallet.Signer) (*SigningClient, error) {
	if c == nil {
		return nil, sdkerrors.Configuration("ledger client is required")
	}
	if signer == nil {
		return nil, sdkerrors.Configuration("this method requires a signing client")
	}
	return &SigningClient{GRPCClient: c, signer: signer}, nil
}

// Address implements Executor.
func (s *SigningClient) Address() string {
	return s.signer.Address()
}

// Execute implements Executor. It simulates for gas unless a limit is given,
// signs in SIGN_MODE_DIRECT, broadcasts in sync mode and waits for inclusion.
// Nothing is retried.
func (s *SigningClient) Execute(ctx context.Context, sender, contract string, msg any, funds []model.Coin, opts ...ExecOption) (*TxResult, error) {
	if sender != s.signer.Address() {
		return nil, sdkerrors.Wallet(nil, fmt.Sprintf("signer address %s does not match sender %s", s.signer.Address(), sender))
	}
	o := ApplyExecOptions(opts)

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, sdkerrors.Contract(err, "failed to encode execute message")
	}
	coins, err := toSDKCoins(funds)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	t := s.timeouts()
	submitCtx, cancel := s.withTimeout(ctx, t.TxSubmit)
	defer cancel()

	txBytes, gas, fee, err := s.buildAndSign(submitCtx, &wasmtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: contract,
		Msg:      wasmtypes.RawContractMessage(payload),
		Funds:    coins,
	}, o)
	if err != nil {
		return nil, err
	}

	res, err := s.tx.BroadcastTx(submitCtx, &txtypes.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		zap.L().Error("broadcast failed", zap.String("contract", contract), zap.Error(err))
		return nil, classifyTransportError(err, "failed to broadcast transaction")
	}
	if res.TxResponse == nil {
		return nil, sdkerrors.Network(nil, "broadcast returned no response")
	}
	if res.TxResponse.Code != 0 {
		zap.L().Warn("transaction rejected at check",
			zap.String("tx_hash", res.TxResponse.TxHash),
			zap.Uint32("code", res.TxResponse.Code),
			zap.String("raw_log", res.TxResponse.RawLog))
		return nil, txError(res.TxResponse)
	}
	hash := res.TxResponse.TxHash
	zap.L().Info("transaction broadcast", zap.String("tx_hash", hash), zap.String("contract", contract), zap.Uint64("gas", gas))

	waitCtx, cancelWait := s.withTimeout(ctx, t.TxWait)
	defer cancelWait()
	included, err := s.WaitForTx(waitCtx, hash, 4*time.Second)
	if err != nil {
		return nil, err
	}
	if included.Code != 0 {
		zap.L().Warn("transaction failed", zap.String("tx_hash", hash), zap.Uint32("code", included.Code), zap.String("raw_log", included.RawLog))
		return nil, txError(included)
	}

	zap.L().Info("transaction included",
		zap.String("tx_hash", hash),
		zap.Int64("height", included.Height),
		zap.Int64("gas_used", included.GasUsed),
		zap.Duration("elapsed", time.Since(started)))

	return &TxResult{
		TxHash:    hash,
		Height:    included.Height,
		GasWanted: included.GasWanted,
		GasUsed:   included.GasUsed,
		Fee:       fee.String(),
		Events:    convertEvents(included),
	}, nil
}

func (s *SigningClient) buildAndSign(ctx context.Context, msg sdk.Msg, o ExecOptions) ([]byte, uint64, sdk.Coins, error) {
	accNum, seq, err := s.account(ctx)
	if err != nil {
		return nil, 0, nil, err
	}
	pub := s.signer.PubKey()

	builder := s.txConfig.NewTxBuilder()
	if err := builder.SetMsgs(msg); err != nil {
		return nil, 0, nil, sdkerrors.Contract(err, "failed to build transaction")
	}
	builder.SetMemo(o.Memo)

	// Simulation needs the signer info in place; the signature itself is empty.
	if err := builder.SetSignatures(signing.SignatureV2{
		PubKey:   pub,
		Data:     &signing.SingleSignatureData{SignMode: signing.SignMode_SIGN_MODE_DIRECT},
		Sequence: seq,
	}); err != nil {
		return nil, 0, nil, sdkerrors.Wallet(err, "failed to set signer info")
	}

	gas := o.GasLimit
	if gas == 0 {
		gas, err = s.simulate(ctx, builder.GetTx())
		if err != nil {
			return nil, 0, nil, err
		}
	}

	fee, err := s.feeFor(gas)
	if err != nil {
		return nil, 0, nil, err
	}
	builder.SetGasLimit(gas)
	builder.SetFeeAmount(fee)

	signBytes, err := authsigning.GetSignBytesAdapter(ctx, s.txConfig.SignModeHandler(), signing.SignMode_SIGN_MODE_DIRECT,
		authsigning.SignerData{
			Address:       s.signer.Address(),
			ChainID:       s.cfg.ChainID,
			AccountNumber: accNum,
			Sequence:      seq,
			PubKey:        pub,
		}, builder.GetTx())
	if err != nil {
		return nil, 0, nil, sdkerrors.Wallet(err, "failed to compute sign bytes")
	}
	sig, err := s.signer.Sign(signBytes)
	if err != nil {
		return nil, 0, nil, sdkerrors.Wallet(err, "signer failed to sign transaction")
	}
	if err := builder.SetSignatures(signing.SignatureV2{
		PubKey:   pub,
		Data:     &signing.SingleSignatureData{SignMode: signing.SignMode_SIGN_MODE_DIRECT, Signature: sig},
		Sequence: seq,
	}); err != nil {
		return nil, 0, nil, sdkerrors.Wallet(err, "failed to attach signature")
	}

	txBytes, err := s.txConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, 0, nil, sdkerrors.Contract(err, "failed to encode transaction")
	}
	return txBytes, gas, fee, nil
}

func (s *SigningClient) account(ctx context.Context) (uint64, uint64, error) {
	res, err := s.auth.AccountInfo(ctx, &authtypes.QueryAccountInfoRequest{Address: s.signer.Address()})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, 0, sdkerrors.Wallet(err, fmt.Sprintf("account %s not found on chain; fund it before sending transactions", s.signer.Address()))
		}
		return 0, 0, classifyTransportError(err, "failed to query signer account")
	}
	if res.Info == nil {
		return 0, 0, sdkerrors.Wallet(nil, "account info missing for "+s.signer.Address())
	}
	return res.Info.AccountNumber, res.Info.Sequence, nil
}

func (s *SigningClient) simulate(ctx context.Context, tx sdk.Tx) (uint64, error) {
	txBytes, err := s.txConfig.TxEncoder()(tx)
	if err != nil {
		return 0, sdkerrors.Contract(err, "failed to encode transaction for simulation")
	}
	res, err := s.tx.Simulate(ctx, &txtypes.SimulateRequest{TxBytes: txBytes})
	if err != nil {
		zap.L().Debug("simulation failed", zap.Error(err))
		return 0, classifySimulateError(err)
	}
	if res.GasInfo == nil {
		return 0, sdkerrors.Network(nil, "simulation returned no gas info")
	}
	return adjustGas(res.GasInfo.GasUsed, s.cfg.GasAdjustment), nil
}

func (s *SigningClient) feeFor(gas uint64) (sdk.Coins, error) {
	return GasFee(s.cfg.GasPrice, gas)
}

// GasFee returns ceil(gas * gasPrice) as a single coin.
func GasFee(gasPrice string, gas uint64) (sdk.Coins, error) {
	price, err := sdk.ParseDecCoin(gasPrice)
	if err != nil {
		return nil, sdkerrors.Configuration(fmt.Sprintf("invalid gas price %q", gasPrice))
	}
	amount := price.Amount.Mul(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(gas))).Ceil().TruncateInt()
	return sdk.NewCoins(sdk.NewCoin(price.Denom, amount)), nil
}

func adjustGas(used uint64, adjustment float64) uint64 {
	if adjustment <= 0 {
		adjustment = 1
	}
	return uint64(math.Ceil(float64(used) * adjustment))
}

func toSDKCoins(funds []model.Coin) (sdk.Coins, error) {
	if len(funds) == 0 {
		return nil, nil
	}
	coins := make(sdk.Coins, 0, len(funds))
	for _, f := range funds {
		amount, ok := sdkmath.NewIntFromString(f.Amount)
		if !ok {
			return nil, sdkerrors.Contract(nil, fmt.Sprintf("invalid funds amount %q", f.Amount))
		}
		coins = append(coins, sdk.Coin{Denom: f.Denom, Amount: amount})
	}
	coins = coins.Sort()
	if err := coins.Validate(); err != nil {
		return nil, sdkerrors.Contract(err, "invalid funds")
	}
	return coins, nil
}

func convertEvents(res *sdk.TxResponse) []Event {
	events := make([]Event, 0, len(res.Events))
	for _, ev := range res.Events {
		e := Event{Type: ev.Type, Attributes: make([]Attribute, 0, len(ev.Attributes))}
		for _, a := range ev.Attributes {
			e.Attributes = append(e.Attributes, Attribute{Key: a.Key, Value: a.Value})
		}
		events = append(events, e)
	}
	return events
}
