package payment

const (
	// EscrowIDHeader carries the escrow id (a decimal uint64) that pays for the request.
	EscrowIDHeader = "X-Escrow-Id"
	// AuthTokenHeader carries the token the caller stored in the escrow at lock time.
	AuthTokenHeader = "X-Auth-Token"

	// EscrowIDParam and AuthTokenParam are accepted as query parameters when
	// the headers are absent, e.g. for links opened in a browser.
	EscrowIDParam  = "escrowId"
	AuthTokenParam = "authToken"
)
