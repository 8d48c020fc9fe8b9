// Package sdk is the entry point of the HTTPay Go SDK.
//
// An SDK value owns one ledger connection and exposes the registry and escrow
// contract clients, the escrow verifier used by providers and the usage
// reporter that releases payments.
//
// # Provider
//
//	cfg := &config.Config{
//		Network:         config.Testnet,
//		RegistryAddress: "neutron1...",
//		EscrowAddress:   "neutron1...",
//		Mnemonic:        os.Getenv("PROVIDER_MNEMONIC"),
//	}
//	httpay, err := sdk.New(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer httpay.Close()
//
//	res, err := httpay.VerifyEscrow(ctx, payment.VerifyParams{
//		EscrowID:     r.Header.Get(payment.EscrowIDHeader),
//		AuthToken:    r.Header.Get(payment.AuthTokenHeader),
//		ProviderAddr: httpay.Address(),
//	})
//	if err == nil && res.IsValid {
//		// serve the request, then charge for it
//		_, err = httpay.PostUsage(ctx, payment.PostUsageParams{EscrowID: id, UsageFee: "250000"})
//	}
//
// Most providers wrap their handler instead:
//
//	mw, err := httpay.Middleware(payment.MiddlewareConfig{
//		Guard:    payment.NewMemoryGuard(0),
//		UsageFee: func(*http.Request, *model.Escrow) string { return "250000" },
//	})
//	http.Handle("/sentiment", mw(handler))
//
// # Caller
//
//	lock, err := httpay.LockFunds(ctx, sdk.LockFundsParams{
//		ToolID: "sentiment-api",
//		MaxFee: "1000000",
//	})
//	// send lock.EscrowID and lock.AuthToken with each request
//
// # Capabilities
//
// Without a mnemonic, private key, signer or executor the SDK is read-only.
// Signing accessors and mutations then fail with a configuration error
// ("this method requires a signing client") before contacting the ledger.
// ConnectWithMnemonic, ConnectWithPrivateKey and ConnectWithSigner upgrade a
// read-only SDK in place.
//
// # Errors
//
// Every facade method returns errors from package sdkerrors. Use
// sdkerrors.KindOf to branch on the category and sdkerrors.IsRetryable to
// decide whether a retry may help; the SDK never retries on its own.
package sdk
