// Package payment implements the provider side of an HTTPay call: checking
// that an escrow authorizes a request and charging the usage fee afterwards.
//
// # Verification
//
// A caller locks funds for a tool and sends the escrow id and its auth token
// with the request. Verifier.Verify loads the escrow and applies the checks in
// a fixed order, stopping at the first failure:
//
//  1. the escrow id is a decimal uint64 ("Invalid escrow ID")
//  2. the escrow exists ("Escrow not found")
//  3. it has not expired: expires >= current height ("Escrow expired")
//  4. it names this provider ("Provider mismatch")
//  5. the token matches exactly ("Invalid authentication token")
//
// Failed checks are returned as a VerificationResult with IsValid false.
// Only ledger or transport failures produce an error.
//
//	v, _ := payment.NewVerifier(escrowClient)
//	res, err := v.Verify(ctx, payment.VerifyParams{
//		EscrowID:     r.Header.Get(payment.EscrowIDHeader),
//		AuthToken:    r.Header.Get(payment.AuthTokenHeader),
//		ProviderAddr: providerAddr,
//	})
//
// # Usage reporting
//
// Reporter.PostUsage releases the fee to the provider and returns the rest of
// the escrow to the caller in one transaction. It needs a signing escrow
// client for the provider account.
//
//	rep, _ := payment.NewReporter(signingEscrow)
//	out, err := rep.PostUsage(ctx, providerAddr, payment.PostUsageParams{
//		EscrowID: "17",
//		UsageFee: "250000",
//	})
//
// # HTTP middleware
//
// Middleware combines both for net/http services. It reads X-Escrow-Id and
// X-Auth-Token (or the escrowId and authToken query parameters), answers 402
// when they do not verify, exposes the escrow to the handler through
// FromContext and can post usage once the handler succeeded. A Guard
// (MemoryGuard, or RedisGuard when several replicas serve the same tool)
// keeps one escrow from paying for two requests in flight.
package payment
