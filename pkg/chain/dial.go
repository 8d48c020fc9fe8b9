package chain

import (
	"crypto/tls"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// grpcCredsFromEndpoint splits an endpoint into a dial target and transport
// credentials. Public Neutron gRPC endpoints are served over TLS behind
// "https://"; local nodes listen on plain host:port.
func grpcCredsFromEndpoint(endpoint string) (string, grpc.DialOption) {
	target := strings.TrimSuffix(endpoint, "/")
	if rest, ok := strings.CutPrefix(target, "https://"); ok {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		return rest, grpc.WithTransportCredentials(creds)
	}
	target = strings.TrimPrefix(target, "http://")
	return target, grpc.WithTransportCredentials(insecure.NewCredentials())
}
