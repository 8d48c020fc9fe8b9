package config

// Network describes a Neutron deployment. GRPCEndpoint may be empty for public
// networks, in which case Config.GRPCEndpoint must be set explicitly.
type Network struct {
	Name         string `json:"network_name" yaml:"name"`
	ChainID      string `json:"chain_id" yaml:"chain_id"`
	GRPCEndpoint string `json:"grpc_endpoint,omitempty" yaml:"grpc_endpoint,omitempty"`
	GasPrice     string `json:"gas_price,omitempty" yaml:"gas_price,omitempty"`
}

// Mainnet is Neutron mainnet.
var Mainnet = Network{
	Name:     "mainnet",
	ChainID:  "neutron-1",
	GasPrice: DefaultGasPrice,
}

// Testnet is the Neutron pion-1 testnet.
var Testnet = Network{
	Name:     "testnet",
	ChainID:  "pion-1",
	GasPrice: DefaultGasPrice,
}

// Local is a single-node development chain with the default gRPC port.
var Local = Network{
	Name:         "local",
	ChainID:      "testing",
	GRPCEndpoint: "localhost:9090",
	GasPrice:     DefaultGasPrice,
}

// NetworkByName returns a predefined network.
func NetworkByName(name string) (Network, bool) {
	switch name {
	case Mainnet.Name:
		return Mainnet, true
	case Testnet.Name:
		return Testnet, true
	case Local.Name:
		return Local, true
	}
	return Network{}, false
}
