package escrow

import "github.com/httpay/httpay-sdk-go/pkg/model"

type executeMsg struct {
	LockFunds     *lockFundsMsg     `json:"lock_funds,omitempty"`
	Release       *releaseMsg       `json:"release,omitempty"`
	RefundExpired *refundExpiredMsg `json:"refund_expired,omitempty"`
	ClaimFees     *claimFeesMsg     `json:"claim_fees,omitempty"`
}

type lockFundsMsg struct {
	ToolID    string `json:"tool_id"`
	MaxFee    string `json:"max_fee"`
	AuthToken string `json:"auth_token"`
	Expires   uint64 `json:"expires"`
}

type releaseMsg struct {
	EscrowID uint64 `json:"escrow_id"`
	UsageFee string `json:"usage_fee"`
}

type refundExpiredMsg struct {
	EscrowID uint64 `json:"escrow_id"`
}

type claimFeesMsg struct {
	Denom *string `json:"denom,omitempty"`
}

type queryMsg struct {
	GetEscrow        *getEscrowQuery  `json:"get_escrow,omitempty"`
	GetEscrows       *getEscrowsQuery `json:"get_escrows,omitempty"`
	GetCollectedFees *struct{}        `json:"get_collected_fees,omitempty"`
	GetConfig        *struct{}        `json:"get_config,omitempty"`
}

type getEscrowQuery struct {
	EscrowID uint64 `json:"escrow_id"`
}

type getEscrowsQuery struct {
	Caller     *string `json:"caller,omitempty"`
	Provider   *string `json:"provider,omitempty"`
	StartAfter *uint64 `json:"start_after,omitempty"`
	Limit      *uint32 `json:"limit,omitempty"`
}

type escrowsResponse struct {
	Escrows []model.Escrow `json:"escrows"`
}
