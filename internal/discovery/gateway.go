package discovery

import (
	"github.com/jackpal/gateway"
	"go.uber.org/zap"
)

// FallbackGateways are common consumer/SOHO router addresses, tried in
// priority order when the OS routing table yields nothing reachable.
var FallbackGateways = []string{
	"192.168.1.1",
	"192.168.0.1",
	"192.168.1.254",
	"192.168.2.1",
	"10.0.0.1",
	"10.0.0.138",
	"192.168.100.1",
}

// GatewayFunc looks up the host's default gateway address. It is a
// variable so tests can substitute the routing-table lookup.
type GatewayFunc func() (string, error)

// DefaultGateway reads the default gateway from the OS routing table.
func DefaultGateway() (string, error) {
	ip, err := gateway.DiscoverGateway()
	if err != nil {
		zap.L().Debug("default gateway discovery failed", zap.Error(err))
		return "", err
	}
	return ip.String(), nil
}
