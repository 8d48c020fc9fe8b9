package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/httpay/httpay-sdk-go/pkg/chain"
	"github.com/httpay/httpay-sdk-go/pkg/model"
)

var (
	errUnauthorized     = errors.New("Unauthorized")
	errFrozen           = errors.New("Contract is frozen")
	errToolNotActive    = errors.New("Tool not found or inactive")
	errEscrowNotFound   = errors.New("Escrow not found")
	errEscrowExpired    = errors.New("Escrow already expired")
	errEscrowNotExpired = errors.New("Escrow not yet expired")
)

func (l *Ledger) executeEscrow(sender, name string, body []byte, funds []model.Coin) ([]chain.Attribute, error) {
	if l.frozen {
		return nil, errFrozen
	}
	switch name {
	case "lock_funds":
		var m struct {
			ToolID    string `json:"tool_id"`
			MaxFee    string `json:"max_fee"`
			AuthToken string `json:"auth_token"`
			Expires   uint64 `json:"expires"`
		}
		if err := strictDecode(body, &m); err != nil {
			return nil, err
		}
		return l.lockFunds(sender, m.ToolID, m.MaxFee, m.AuthToken, m.Expires, funds)
	case "release":
		var m struct {
			EscrowID uint64 `json:"escrow_id"`
			UsageFee string `json:"usage_fee"`
		}
		if err := strictDecode(body, &m); err != nil {
			return nil, err
		}
		return l.release(sender, m.EscrowID, m.UsageFee)
	case "refund_expired":
		var m struct {
			EscrowID uint64 `json:"escrow_id"`
		}
		if err := strictDecode(body, &m); err != nil {
			return nil, err
		}
		return l.refundExpired(sender, m.EscrowID)
	case "claim_fees":
		var m struct {
			Denom *string `json:"denom"`
		}
		if err := strictDecode(body, &m); err != nil {
			return nil, err
		}
		return l.claimFees(sender, m.Denom)
	}
	return nil, fmt.Errorf("Error parsing into type escrow::msg::ExecuteMsg: unknown variant `%s`", name)
}

func (l *Ledger) lockFunds(sender, toolID, maxFeeStr, authToken string, expires uint64, funds []model.Coin) ([]chain.Attribute, error) {
	tool, ok := l.tools[toolID]
	if !ok || !tool.IsActive {
		return nil, errToolNotActive
	}
	maxFee, err := parseAmount(maxFeeStr)
	if err != nil {
		return nil, err
	}

	attached := sdkmath.ZeroUint()
	for _, c := range funds {
		if c.Denom != tool.Denom {
			continue
		}
		if attached, err = parseAmount(c.Amount); err != nil {
			return nil, err
		}
	}
	if attached.LT(maxFee) {
		return nil, fmt.Errorf("Insufficient funds: required %s, but only %s was sent", maxFee, attached)
	}

	var blocks uint64
	if expires > l.height {
		blocks = expires - l.height
	}
	if blocks > MaxEscrowBlocks {
		return nil, fmt.Errorf("Escrow expiration too far in future: max %d blocks, got %d blocks", MaxEscrowBlocks, blocks)
	}

	id := l.nextID
	l.nextID++
	l.escrows[id] = &escrowRecord{
		Escrow: model.Escrow{
			EscrowID:  id,
			Caller:    sender,
			Provider:  tool.Provider,
			MaxFee:    maxFee.String(),
			AuthToken: authToken,
			Expires:   expires,
			Denom:     tool.Denom,
			ToolID:    toolID,
		},
		maxFee: maxFee,
	}
	return []chain.Attribute{
		{Key: "action", Value: "lock_funds"},
		idAttr(id),
		{Key: "denom", Value: tool.Denom},
	}, nil
}

func (l *Ledger) release(sender string, id uint64, usageFeeStr string) ([]chain.Attribute, error) {
	e, ok := l.escrows[id]
	if !ok {
		return nil, errEscrowNotFound
	}
	if sender != e.Provider {
		return nil, errUnauthorized
	}
	if l.height > e.Expires {
		return nil, errEscrowExpired
	}
	usageFee, err := parseAmount(usageFeeStr)
	if err != nil {
		return nil, err
	}
	if usageFee.GT(e.maxFee) {
		return nil, fmt.Errorf("Usage fee exceeds max fee: max %s, requested %s", e.maxFee, usageFee)
	}

	platformFee := usageFee.MulUint64(l.feePercentage).QuoUint64(100)
	l.addCollected(e.Denom, platformFee)
	l.credit(e.Provider, e.Denom, usageFee.Sub(platformFee))
	l.credit(e.Caller, e.Denom, e.maxFee.Sub(usageFee))
	delete(l.escrows, id)

	return []chain.Attribute{
		{Key: "action", Value: "release"},
		idAttr(id),
		{Key: "usage_fee", Value: usageFee.String()},
		{Key: "platform_fee", Value: platformFee.String()},
	}, nil
}

func (l *Ledger) refundExpired(sender string, id uint64) ([]chain.Attribute, error) {
	e, ok := l.escrows[id]
	if !ok {
		return nil, errEscrowNotFound
	}
	if sender != e.Caller {
		return nil, errUnauthorized
	}
	if l.height <= e.Expires {
		return nil, errEscrowNotExpired
	}
	l.credit(e.Caller, e.Denom, e.maxFee)
	delete(l.escrows, id)
	return []chain.Attribute{
		{Key: "action", Value: "refund_expired"},
		idAttr(id),
		{Key: "refund_amount", Value: e.maxFee.String()},
	}, nil
}

func (l *Ledger) claimFees(sender string, denom *string) ([]chain.Attribute, error) {
	if sender != l.Owner {
		return nil, errUnauthorized
	}
	attrs := []chain.Attribute{{Key: "action", Value: "claim_fees"}}
	for _, d := range sortedDenoms(l.collected) {
		if denom != nil && *denom != d {
			continue
		}
		amount := l.collected[d]
		if amount.IsZero() {
			continue
		}
		l.credit(l.Owner, d, amount)
		l.collected[d] = sdkmath.ZeroUint()
		attrs = append(attrs, chain.Attribute{Key: "claimed", Value: amount.String() + d})
	}
	if len(attrs) == 1 {
		return nil, errors.New("No fees to claim")
	}
	return attrs, nil
}

func (l *Ledger) addCollected(denom string, amount sdkmath.Uint) {
	cur, ok := l.collected[denom]
	if !ok {
		cur = sdkmath.ZeroUint()
	}
	l.collected[denom] = cur.Add(amount)
}

func (l *Ledger) queryEscrow(name string, body []byte) (any, error) {
	switch name {
	case "get_escrow":
		var q struct {
			EscrowID uint64 `json:"escrow_id"`
		}
		if err := strictDecode(body, &q); err != nil {
			return nil, err
		}
		e, ok := l.escrows[q.EscrowID]
		if !ok {
			return nil, fmt.Errorf("Escrow %d not found", q.EscrowID)
		}
		return e.Escrow, nil
	case "get_escrows":
		var q struct {
			Caller     *string `json:"caller"`
			Provider   *string `json:"provider"`
			StartAfter *uint64 `json:"start_after"`
			Limit      *uint32 `json:"limit"`
		}
		if err := strictDecode(body, &q); err != nil {
			return nil, err
		}
		limit := defaultPageLimit
		if q.Limit != nil {
			limit = int(*q.Limit)
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		items := make([]map[string]any, 0, limit)
		for _, id := range sortedEscrowIDs(l.escrows) {
			if len(items) == limit {
				break
			}
			e := l.escrows[id]
			if q.StartAfter != nil && id <= *q.StartAfter && !l.ignoreStartAfter {
				continue
			}
			if q.Caller != nil && *q.Caller != e.Caller {
				continue
			}
			if q.Provider != nil && *q.Provider != e.Provider {
				continue
			}
			// Listing items name the identifier "id".
			items = append(items, map[string]any{
				"id":         id,
				"caller":     e.Caller,
				"provider":   e.Provider,
				"max_fee":    e.MaxFee,
				"auth_token": e.AuthToken,
				"expires":    e.Expires,
				"denom":      e.Denom,
			})
		}
		return map[string]any{"escrows": items}, nil
	case "get_collected_fees":
		fees := make([]model.Coin, 0, len(l.collected))
		for _, d := range sortedDenoms(l.collected) {
			fees = append(fees, model.Coin{Denom: d, Amount: l.collected[d].String()})
		}
		return model.CollectedFees{Owner: l.Owner, FeePercentage: l.feePercentage, CollectedFees: fees}, nil
	case "get_config":
		return model.EscrowConfig{Owner: l.Owner, RegistryAddr: l.RegistryAddr, FeePercentage: l.feePercentage, Frozen: l.frozen}, nil
	}
	return nil, fmt.Errorf("Error parsing into type escrow::msg::QueryMsg: unknown variant `%s`", name)
}

func sortedDenoms(m map[string]sdkmath.Uint) []string {
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// EscrowCount returns the number of live escrows.
func (l *Ledger) EscrowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.escrows)
}

// PutEscrow stores an escrow directly and returns its id. Zero ids are
// assigned from the contract counter.
func (l *Ledger) PutEscrow(e model.Escrow) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.EscrowID == 0 {
		e.EscrowID = l.nextID
	}
	if e.EscrowID >= l.nextID {
		l.nextID = e.EscrowID + 1
	}
	maxFee, err := parseAmount(e.MaxFee)
	if err != nil {
		panic("ledger: " + err.Error() + " for escrow " + strconv.FormatUint(e.EscrowID, 10))
	}
	l.escrows[e.EscrowID] = &escrowRecord{Escrow: e, maxFee: maxFee}
	return e.EscrowID
}
