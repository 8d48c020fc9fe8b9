// Package registry is the client of the HTTPay tool registry contract, where
// providers publish tools with a price, denom and endpoint.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/metrics"
	"github.com/httpay/httpay-sdk-go/pkg/model"
	"github.com/httpay/httpay-sdk-go/pkg/sdkerrors"
	"go.uber.org/zap"
)

// Registry contract limits.
const (
	MaxToolIDLength      = 16
	MaxDescriptionLength = 256
	MaxEndpointLength    = 512
)

type executeMsg struct {
	RegisterTool   *registerToolMsg   `json:"register_tool,omitempty"`
	UpdatePrice    *updatePriceMsg    `json:"update_price,omitempty"`
	UpdateEndpoint *updateEndpointMsg `json:"update_endpoint,omitempty"`
	UpdateDenom    *updateDenomMsg    `json:"update_denom,omitempty"`
	PauseTool      *toolRef           `json:"pause_tool,omitempty"`
	ResumeTool     *toolRef           `json:"resume_tool,omitempty"`
}

type registerToolMsg struct {
	ToolID      string  `json:"tool_id"`
	Price       string  `json:"price"`
	Description *string `json:"description,omitempty"`
	Endpoint    string  `json:"endpoint"`
	Denom       *string `json:"denom,omitempty"`
}

type updatePriceMsg struct {
	ToolID string `json:"tool_id"`
	Price  string `json:"price"`
}

type updateEndpointMsg struct {
	ToolID   string `json:"tool_id"`
	Endpoint string `json:"endpoint"`
}

type updateDenomMsg struct {
	ToolID string `json:"tool_id"`
	Denom  string `json:"denom"`
}

type toolRef struct {
	ToolID string `json:"tool_id"`
}

type queryMsg struct {
	GetTool  *toolRef  `json:"get_tool,omitempty"`
	GetTools *struct{} `json:"get_tools,omitempty"`
}

type toolsResponse struct {
	Tools []model.Tool `json:"tools"`
}

// Client reads the registry.
type Client struct {
	q        chain.Querier
	contract string
}

// NewClient returns a query client for the registry contract at contract.
func NewClient(q chain.Querier, contract string) (*Client, error) {
	if q == nil {
		return nil, sdkerrors.Configuration("ledger querier is required")
	}
	if contract == "" {
		return nil, sdkerrors.Configuration("Registry contract address is required in configuration")
	}
	return &Client{q: q, contract: contract}, nil
}

// Contract returns the registry contract address.
func (c *Client) Contract() string { return c.contract }

// GetTool looks up a tool. The contract answers a missing tool with null
// or a "not found" error; both become a NotFound error.
func (c *Client) GetTool(ctx context.Context, toolID string) (*model.Tool, error) {
	var tool *model.Tool
	err := c.q.QuerySmart(ctx, c.contract, queryMsg{GetTool: &toolRef{ToolID: toolID}}, &tool)
	if err != nil && !errors.Is(err, sdkerrors.ErrNotFound) {
		return nil, sdkerrors.Normalize(err, "failed to query tool")
	}
	if err != nil || tool == nil {
		return nil, sdkerrors.NotFound(fmt.Sprintf("Tool %s not found", toolID))
	}
	return tool, nil
}

// GetTools lists every registered tool.
func (c *Client) GetTools(ctx context.Context) ([]model.Tool, error) {
	var res toolsResponse
	if err := c.q.QuerySmart(ctx, c.contract, queryMsg{GetTools: &struct{}{}}, &res); err != nil {
		return nil, sdkerrors.Normalize(err, "failed to list tools")
	}
	return res.Tools, nil
}

// RegisterToolParams describes a new tool. Description and Denom are optional.
type RegisterToolParams struct {
	ToolID      string
	Price       string
	Description string
	Endpoint    string
	Denom       string
}

// ValidateRegistration checks p against the contract's limits without
// contacting the ledger. RegisterTool does not call it.
func ValidateRegistration(p RegisterToolParams) error {
	switch {
	case p.ToolID == "":
		return sdkerrors.Contract(nil, "Tool ID is required")
	case len(p.ToolID) > MaxToolIDLength:
		return sdkerrors.Contract(nil, "Tool ID must be 16 characters or less")
	case len(p.Description) > MaxDescriptionLength:
		return sdkerrors.Contract(nil, "Description must be 256 characters or less")
	case len(p.Endpoint) > MaxEndpointLength:
		return sdkerrors.Contract(nil, "Endpoint must be 512 characters or less")
	case !strings.HasPrefix(p.Endpoint, "https://"):
		return sdkerrors.Contract(nil, "Endpoint must start with https://")
	}
	if _, err := model.ParseUint128(p.Price); err != nil {
		return sdkerrors.Contract(err, fmt.Sprintf("invalid price %q", p.Price))
	}
	return nil
}

// SigningClient adds the provider-side registry mutations. Each call sends
// exactly one message.
type SigningClient struct {
	*Client
	exec chain.Executor
	rec  metrics.Recorder
}

// Option configures a SigningClient.
type Option func(*SigningClient)

// WithMetrics records executions on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *SigningClient) { s.rec = metrics.Or(r) }
}

// NewSigningClient returns a client that signs with exec.
func NewSigningClient(exec chain.Executor, contract string, opts ...Option) (*SigningClient, error) {
	if exec == nil {
		return nil, sdkerrors.Configuration("this method requires a signing client")
	}
	c, err := NewClient(exec, contract)
	if err != nil {
		return nil, err
	}
	s := &SigningClient{Client: c, exec: exec, rec: metrics.Noop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterTool publishes a tool owned by sender.
func (s *SigningClient) RegisterTool(ctx context.Context, sender string, p RegisterToolParams, opts ...chain.ExecOption) (*chain.TxResult, error) {
	msg := &registerToolMsg{ToolID: p.ToolID, Price: p.Price, Endpoint: p.Endpoint}
	if p.Description != "" {
		msg.Description = &p.Description
	}
	if p.Denom != "" {
		msg.Denom = &p.Denom
	}
	return s.execute(ctx, "register_tool", sender, executeMsg{RegisterTool: msg}, opts)
}

// UpdatePrice changes the price of a tool owned by sender.
func (s *SigningClient) UpdatePrice(ctx context.Context, sender, toolID, price string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "update_price", sender, executeMsg{UpdatePrice: &updatePriceMsg{ToolID: toolID, Price: price}}, opts)
}

// UpdateEndpoint changes the endpoint of a tool owned by sender.
func (s *SigningClient) UpdateEndpoint(ctx context.Context, sender, toolID, endpoint string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "update_endpoint", sender, executeMsg{UpdateEndpoint: &updateEndpointMsg{ToolID: toolID, Endpoint: endpoint}}, opts)
}

// UpdateDenom changes the payment denom of a tool owned by sender.
func (s *SigningClient) UpdateDenom(ctx context.Context, sender, toolID, denom string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "update_denom", sender, executeMsg{UpdateDenom: &updateDenomMsg{ToolID: toolID, Denom: denom}}, opts)
}

// PauseTool deactivates a tool; new escrows for it are rejected.
func (s *SigningClient) PauseTool(ctx context.Context, sender, toolID string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "pause_tool", sender, executeMsg{PauseTool: &toolRef{ToolID: toolID}}, opts)
}

// ResumeTool reactivates a paused tool.
func (s *SigningClient) ResumeTool(ctx context.Context, sender, toolID string, opts ...chain.ExecOption) (*chain.TxResult, error) {
	return s.execute(ctx, "resume_tool", sender, executeMsg{ResumeTool: &toolRef{ToolID: toolID}}, opts)
}

func (s *SigningClient) execute(ctx context.Context, op, sender string, msg executeMsg, opts []chain.ExecOption) (*chain.TxResult, error) {
	start := time.Now()
	res, err := s.exec.Execute(ctx, sender, s.contract, msg, nil, opts...)
	s.rec.ObserveTx(op, metrics.Status(err), time.Since(start))
	if err != nil {
		return nil, sdkerrors.Normalize(err, op+" failed")
	}
	zap.L().Info("registry updated", zap.String("op", op), zap.String("sender", sender), zap.String("tx_hash", res.TxHash))
	return res, nil
}
