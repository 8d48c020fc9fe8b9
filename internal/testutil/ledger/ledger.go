// Package ledger is an in-memory stand-in for a Neutron node running the
// HTTPay escrow and registry contracts. It implements chain.Querier and
// chain.Executor and applies the contracts' rules, so client packages can be
// tested without a network.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/config"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
)

// MaxEscrowBlocks mirrors the escrow contract's expiry bound.
const MaxEscrowBlocks = 50

const (
	defaultPageLimit = 10
	maxPageLimit     = 30
	gasUsed          = 120000
)

// Address derives a deterministic neutron address from seed.
func Address(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	addr, err := bech32.ConvertAndEncode(config.DefaultBech32Prefix, sum[:20])
	if err != nil {
		panic(err)
	}
	return addr
}

// ContractAddress derives a deterministic 32-byte contract address from seed.
func ContractAddress(seed string) string {
	sum := sha256.Sum256([]byte("contract/" + seed))
	addr, err := bech32.ConvertAndEncode(config.DefaultBech32Prefix, sum[:])
	if err != nil {
		panic(err)
	}
	return addr
}

// Exec records one Execute call.
type Exec struct {
	Sender   string
	Contract string
	Msg      json.RawMessage
	Funds    []model.Coin
	Options  chain.ExecOptions
}

type escrowRecord struct {
	model.Escrow
	maxFee sdkmath.Uint
}

// Ledger is the fake chain. The zero value is not usable; call New.
type Ledger struct {
	EscrowAddr   string
	RegistryAddr string
	Owner        string

	mu            sync.Mutex
	height        uint64
	feePercentage uint64
	frozen        bool
	nextID        uint64
	txCount       int
	escrows       map[uint64]*escrowRecord
	tools         map[string]*model.Tool
	collected     map[string]sdkmath.Uint
	received      map[string]map[string]sdkmath.Uint

	queries          int
	executes         []Exec
	failWith         error
	noEvents         bool
	ignoreStartAfter bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithHeight sets the starting block height.
func WithHeight(h uint64) Option { return func(l *Ledger) { l.height = h } }

// WithFeePercentage sets the escrow contract's platform fee (0-100).
func WithFeePercentage(p uint64) Option { return func(l *Ledger) { l.feePercentage = p } }

// New returns a ledger at height 1000 with empty contracts.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		EscrowAddr:   ContractAddress("escrow"),
		RegistryAddr: ContractAddress("registry"),
		Owner:        Address("owner"),
		height:       1000,
		nextID:       1,
		escrows:      make(map[uint64]*escrowRecord),
		tools:        make(map[string]*model.Tool),
		collected:    make(map[string]sdkmath.Uint),
		received:     make(map[string]map[string]sdkmath.Uint),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns a validated SDK configuration pointing at this ledger.
func (l *Ledger) Config() *config.Config {
	cfg := &config.Config{
		Network:         config.Local,
		RegistryAddress: l.RegistryAddr,
		EscrowAddress:   l.EscrowAddr,
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Height returns the current block height.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// SetHeight moves the chain to h.
func (l *Ledger) SetHeight(h uint64) {
	l.mu.Lock()
	l.height = h
	l.mu.Unlock()
}

// Advance adds n blocks.
func (l *Ledger) Advance(n uint64) {
	l.mu.Lock()
	l.height += n
	l.mu.Unlock()
}

// Freeze makes every escrow execute fail with "Contract is frozen".
func (l *Ledger) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// FailWith makes every call return err until cleared with FailWith(nil).
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	l.failWith = err
	l.mu.Unlock()
}

// DropEvents strips events from transaction results.
func (l *Ledger) DropEvents(drop bool) {
	l.mu.Lock()
	l.noEvents = drop
	l.mu.Unlock()
}

// IgnoreStartAfter makes get_escrows disregard its cursor, as a buggy node might.
func (l *Ledger) IgnoreStartAfter(ignore bool) {
	l.mu.Lock()
	l.ignoreStartAfter = ignore
	l.mu.Unlock()
}

// Queries returns the number of smart queries and height lookups served.
func (l *Ledger) Queries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queries
}

// Executes returns a copy of every Execute call that reached the ledger,
// including rejected ones.
func (l *Ledger) Executes() []Exec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Exec(nil), l.executes...)
}

// Calls is the total number of queries and executes.
func (l *Ledger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queries + len(l.executes)
}

// Received returns the total amount of denom paid out by the escrow contract to addr.
func (l *Ledger) Received(addr, denom string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.received[addr][denom]; ok {
		return v.String()
	}
	return "0"
}

// PutTool stores a tool directly, bypassing register_tool validation.
func (l *Ledger) PutTool(t model.Tool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.Denom == "" {
		t.Denom = config.DefaultDenom
	}
	cp := t
	l.tools[t.ToolID] = &cp
}

// Querier returns a read-only view of the ledger.
func (l *Ledger) Querier() chain.Querier { return readOnly{l} }

// Executor returns a signing view bound to addr.
func (l *Ledger) Executor(addr string) chain.Executor { return &account{l: l, addr: addr} }

type readOnly struct{ l *Ledger }

func (r readOnly) QuerySmart(ctx context.Context, contract string, msg any, out any) error {
	return r.l.QuerySmart(ctx, contract, msg, out)
}

func (r readOnly) LatestHeight(ctx context.Context) (uint64, error) {
	return r.l.LatestHeight(ctx)
}

type account struct {
	l    *Ledger
	addr string
}

func (a *account) QuerySmart(ctx context.Context, contract string, msg any, out any) error {
	return a.l.QuerySmart(ctx, contract, msg, out)
}

func (a *account) LatestHeight(ctx context.Context) (uint64, error) {
	return a.l.LatestHeight(ctx)
}

func (a *account) Address() string { return a.addr }

func (a *account) Execute(ctx context.Context, sender, contract string, msg any, funds []model.Coin, opts ...chain.ExecOption) (*chain.TxResult, error) {
	if sender != a.addr {
		return nil, sdkerrors.Wallet(nil, fmt.Sprintf("signer address %s does not match sender %s", a.addr, sender))
	}
	return a.l.execute(ctx, sender, contract, msg, funds, chain.ApplyExecOptions(opts))
}

// LatestHeight implements chain.Querier.
func (l *Ledger) LatestHeight(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries++
	if err := l.precheck(ctx); err != nil {
		return 0, err
	}
	return l.height, nil
}

// QuerySmart implements chain.Querier.
func (l *Ledger) QuerySmart(ctx context.Context, contract string, msg any, out any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries++
	if err := l.precheck(ctx); err != nil {
		return err
	}

	name, body, err := decodeMsg(msg)
	if err != nil {
		return sdkerrors.Contract(err, "query wasm contract failed")
	}

	var res any
	switch contract {
	case l.EscrowAddr:
		res, err = l.queryEscrow(name, body)
	case l.RegistryAddr:
		res, err = l.queryRegistry(name, body)
	default:
		return sdkerrors.Contract(fmt.Errorf("no such contract: %s: not found", contract), "query wasm contract failed")
	}
	if err != nil {
		if chain.IsMissingRecord(err.Error()) {
			return sdkerrors.NotFound(err.Error() + ": query wasm contract failed")
		}
		return sdkerrors.Contract(err, "query wasm contract failed")
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (l *Ledger) execute(ctx context.Context, sender, contract string, msg any, funds []model.Coin, o chain.ExecOptions) (*chain.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, _ := json.Marshal(msg)
	l.executes = append(l.executes, Exec{Sender: sender, Contract: contract, Msg: raw, Funds: append([]model.Coin(nil), funds...), Options: o})
	if err := l.precheck(ctx); err != nil {
		return nil, err
	}

	name, body, err := decodeMsg(msg)
	if err != nil {
		return nil, contractErr(err)
	}

	var attrs []chain.Attribute
	switch contract {
	case l.EscrowAddr:
		attrs, err = l.executeEscrow(sender, name, body, funds)
	case l.RegistryAddr:
		attrs, err = l.executeRegistry(sender, name, body)
	default:
		err = fmt.Errorf("no such contract: %s", contract)
	}
	if err != nil {
		return nil, contractErr(err)
	}

	l.txCount++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", contract, l.txCount)))
	gas := o.GasLimit
	if gas == 0 {
		gas = gasUsed * 13 / 10
	}
	fee, err := chain.GasFee(config.DefaultGasPrice, gas)
	if err != nil {
		return nil, err
	}
	res := &chain.TxResult{
		TxHash:    strings.ToUpper(hex.EncodeToString(sum[:])),
		Height:    int64(l.height),
		GasWanted: int64(gas),
		GasUsed:   gasUsed,
		Fee:       fee.String(),
	}
	if !l.noEvents {
		res.Events = []chain.Event{
			{Type: "message", Attributes: []chain.Attribute{{Key: "sender", Value: sender}}},
			{Type: "wasm", Attributes: append([]chain.Attribute{{Key: "_contract_address", Value: contract}}, attrs...)},
		}
	}
	return res, nil
}

func (l *Ledger) precheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return sdkerrors.Network(err, "request cancelled")
	}
	return l.failWith
}

func contractErr(err error) error {
	return sdkerrors.Contract(err, "execute wasm contract failed",
		sdkerrors.WithDetail(chain.DetailCode, uint32(5)),
		sdkerrors.WithDetail(chain.DetailRawLog, err.Error()))
}

func decodeMsg(msg any) (string, json.RawMessage, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil, fmt.Errorf("Error parsing into type msg: %w", err)
	}
	if len(envelope) != 1 {
		return "", nil, errors.New("Error parsing into type msg: expected exactly one variant")
	}
	for k, v := range envelope {
		return k, v, nil
	}
	return "", nil, nil
}

func strictDecode(body json.RawMessage, v any) error {
	if len(body) == 0 || string(body) == "null" {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("Error parsing into type msg: %w", err)
	}
	return nil
}

func parseAmount(s string) (sdkmath.Uint, error) {
	u, err := model.ParseUint128(s)
	if err != nil {
		return sdkmath.ZeroUint(), fmt.Errorf("Invalid Uint128 %q", s)
	}
	return u, nil
}

func (l *Ledger) credit(addr, denom string, amount sdkmath.Uint) {
	if amount.IsZero() {
		return
	}
	if l.received[addr] == nil {
		l.received[addr] = make(map[string]sdkmath.Uint)
	}
	cur, ok := l.received[addr][denom]
	if !ok {
		cur = sdkmath.ZeroUint()
	}
	l.received[addr][denom] = cur.Add(amount)
}

func sortedEscrowIDs(m map[uint64]*escrowRecord) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func idAttr(id uint64) chain.Attribute {
	return chain.Attribute{Key: "escrow_id", Value: strconv.FormatUint(id, 10)}
}
