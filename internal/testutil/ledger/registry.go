package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/config"
	"github.com/httpay/httpay-sdk-go/pkg/model"
)

var errToolNotFound = errors.New("Tool not found")

func (l *Ledger) executeRegistry(sender, name string, body []byte) ([]chain.Attribute, error) {
	var m struct {
		ToolID      string  `json:"tool_id"`
		Price       string  `json:"price"`
		Description *string `json:"description"`
		Endpoint    string  `json:"endpoint"`
		Denom       *string `json:"denom"`
	}
	if err := strictDecode(body, &m); err != nil {
		return nil, err
	}

	if name == "register_tool" {
		return l.registerTool(sender, m.ToolID, m.Price, m.Description, m.Endpoint, m.Denom)
	}

	tool, ok := l.tools[m.ToolID]
	if !ok {
		return nil, errToolNotFound
	}
	if sender != tool.Provider {
		return nil, errUnauthorized
	}
	attrs := []chain.Attribute{{Key: "method", Value: name}, {Key: "tool_id", Value: m.ToolID}}
	switch name {
	case "update_price":
		p, err := parseAmount(m.Price)
		if err != nil {
			return nil, err
		}
		tool.Price = p.String()
		attrs = append(attrs, chain.Attribute{Key: "new_price", Value: tool.Price})
	case "update_endpoint":
		if err := validateEndpoint(m.Endpoint); err != nil {
			return nil, err
		}
		tool.Endpoint = m.Endpoint
	case "update_denom":
		if m.Denom == nil || *m.Denom == "" {
			return nil, errors.New("Invalid denom")
		}
		tool.Denom = *m.Denom
	case "pause_tool":
		tool.IsActive = false
	case "resume_tool":
		tool.IsActive = true
	default:
		return nil, fmt.Errorf("Error parsing into type registry::msg::ExecuteMsg: unknown variant `%s`", name)
	}
	return attrs, nil
}

func (l *Ledger) registerTool(sender, toolID, price string, description *string, endpoint string, denom *string) ([]chain.Attribute, error) {
	if len(toolID) > 16 {
		return nil, errors.New("Tool ID must be 16 characters or less")
	}
	if description != nil && len(*description) > 256 {
		return nil, errors.New("Description must be 256 characters or less")
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	p, err := parseAmount(price)
	if err != nil {
		return nil, err
	}
	if existing, ok := l.tools[toolID]; ok && existing.Provider != sender {
		return nil, errUnauthorized
	}
	t := &model.Tool{
		ToolID:   toolID,
		Provider: sender,
		Price:    p.String(),
		Denom:    config.DefaultDenom,
		Endpoint: endpoint,
		IsActive: true,
	}
	if description != nil {
		t.Description = *description
	}
	if denom != nil && *denom != "" {
		t.Denom = *denom
	}
	l.tools[toolID] = t
	return []chain.Attribute{
		{Key: "method", Value: "register_tool"},
		{Key: "tool_id", Value: toolID},
		{Key: "provider", Value: sender},
		{Key: "price", Value: t.Price},
	}, nil
}

func validateEndpoint(endpoint string) error {
	if len(endpoint) > 512 {
		return errors.New("Endpoint must be 512 characters or less")
	}
	if !strings.HasPrefix(endpoint, "https://") {
		return errors.New("Endpoint must start with https://")
	}
	return nil
}

func (l *Ledger) queryRegistry(name string, body []byte) (any, error) {
	switch name {
	case "get_tool":
		var q struct {
			ToolID string `json:"tool_id"`
		}
		if err := strictDecode(body, &q); err != nil {
			return nil, err
		}
		t, ok := l.tools[q.ToolID]
		if !ok {
			// The contract answers a missing tool with null rather than an error.
			return nil, nil
		}
		return *t, nil
	case "get_tools":
		ids := make([]string, 0, len(l.tools))
		for id := range l.tools {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		tools := make([]model.Tool, 0, len(ids))
		for _, id := range ids {
			tools = append(tools, *l.tools[id])
		}
		return map[string]any{"tools": tools}, nil
	}
	return nil, fmt.Errorf("Error parsing into type registry::msg::QueryMsg: unknown variant `%s`", name)
}
