// Package model defines the data structures exchanged with the HTTPay registry
// and escrow contracts: tools, escrows, collected fees and coins. The JSON
// tags mirror the contract query responses byte for byte.
package model

import (
	"encoding/json"
)

// Coin is a single token amount. Amount is a base-10 Uint128 string.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Tool is a registry entry mapping a tool identifier to its provider, price,
// denom, endpoint and active status.
type Tool struct {
	ToolID      string `json:"tool_id"`
	Provider    string `json:"provider"`
	Price       string `json:"price"`
	Denom       string `json:"denom"`
	Description string `json:"description,omitempty"`
	Endpoint    string `json:"endpoint"`
	IsActive    bool   `json:"is_active"`
}

// Escrow is a read snapshot of funds locked by Caller for Provider.
// Expires is a block height; the escrow is still valid at exactly that height.
type Escrow struct {
	EscrowID  uint64 `json:"escrow_id"`
	Caller    string `json:"caller"`
	Provider  string `json:"provider"`
	MaxFee    string `json:"max_fee"`
	AuthToken string `json:"auth_token"`
	Expires   uint64 `json:"expires"`
	Denom     string `json:"denom,omitempty"`
	ToolID    string `json:"tool_id,omitempty"`
}

// UnmarshalJSON accepts listing items that carry the identifier as "id"
// instead of "escrow_id".
func (e *Escrow) UnmarshalJSON(data []byte) error {
	type plain Escrow
	aux := struct {
		*plain
		ID *uint64 `json:"id"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID != nil && e.EscrowID == 0 {
		e.EscrowID = *aux.ID
	}
	return nil
}

// CollectedFees is the escrow contract's fee ledger.
type CollectedFees struct {
	Owner         string `json:"owner"`
	FeePercentage uint64 `json:"fee_percentage"`
	CollectedFees []Coin `json:"collected_fees"`
}

// EscrowConfig is the escrow contract's global configuration.
type EscrowConfig struct {
	Owner         string `json:"owner"`
	RegistryAddr  string `json:"registry_addr"`
	FeePercentage uint64 `json:"fee_percentage"`
	Frozen        bool   `json:"frozen"`
}

// VerificationResult is the outcome of checking caller credentials against an
// escrow snapshot. Expected failures are reported through IsValid and Error.
type VerificationResult struct {
	IsValid     bool    `json:"isValid"`
	Error       string  `json:"error,omitempty"`
	Escrow      *Escrow `json:"escrow,omitempty"`
	BlockHeight uint64  `json:"blockHeight,omitempty"`
}

// Invalid builds a failed VerificationResult with the given reason.
func Invalid(reason string) VerificationResult {
	return VerificationResult{IsValid: false, Error: reason}
}
