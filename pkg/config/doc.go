// Package config provides configuration management for the HTTPay SDK.
//
// The minimum configuration names the two contracts; everything else has a
// default derived from the selected Network (Testnet when unset):
//
//	cfg := &config.Config{
//		Network:         config.Mainnet,
//		GRPCEndpoint:    "https://grpc.example.org:443",
//		RegistryAddress: "neutron1...",
//		EscrowAddress:   "neutron1...",
//	}
//	if err := cfg.Validate(); err != nil {
//		// err is a ConfigurationError naming the first bad field
//	}
//
// # Networks
//
//	config.Mainnet - neutron-1
//	config.Testnet - pion-1
//	config.Local   - "testing", localhost:9090
//
// # Files
//
// Load reads the same structure from YAML. A network may be given by name only:
//
//	network:
//	  name: testnet
//	grpc_endpoint: grpc.example.org:9090
//	registry_address: neutron1...
//	escrow_address: neutron1...
//	timeouts:
//	  tx_wait: 90s
//
// # Signing material
//
// Mnemonic or PrivateKey (never both) make the SDK signing-capable. Without
// either the SDK is read-only and every mutation fails with a
// ConfigurationError before touching the network.
package config
