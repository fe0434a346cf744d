package emitter

import (
	"context"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"hytun/internal/storage/models"
)

// ClientConfig mirrors the hysteria client's YAML document. The top-level
// keys are a contract with the external process and must not change.
type ClientConfig struct {
	Server    string           `yaml:"server"`
	Auth      string           `yaml:"auth"`
	TLS       TLSConfig        `yaml:"tls"`
	Obfs      *ObfsConfig      `yaml:"obfs,omitempty"`
	Tun       TunConfig        `yaml:"tun"`
	Bandwidth *BandwidthConfig `yaml:"bandwidth,omitempty"`
	Log       LogConfig        `yaml:"log"`
}

// TLSConfig is the client TLS block.
type TLSConfig struct {
	SNI      string   `yaml:"sni"`
	Insecure bool     `yaml:"insecure"`
	ALPN     []string `yaml:"alpn,omitempty"`
}

// ObfsConfig is emitted only when the node sets an obfuscation type.
type ObfsConfig struct {
	Type     string `yaml:"type"`
	Password string `yaml:"password,omitempty"`
}

// TunConfig configures the TUN device the hysteria process creates.
type TunConfig struct {
	Name    string      `yaml:"name"`
	MTU     int         `yaml:"mtu"`
	Timeout string      `yaml:"timeout"`
	Route   RouteConfig `yaml:"route"`
}

// RouteConfig routes everything through the tunnel except the upstream
// server itself and local-only destinations.
type RouteConfig struct {
	IPv4        []string `yaml:"ipv4"`
	IPv6        []string `yaml:"ipv6"`
	IPv4Exclude []string `yaml:"ipv4Exclude,omitempty"`
	IPv6Exclude []string `yaml:"ipv6Exclude,omitempty"`
}

// BandwidthConfig is emitted only when the node carries bandwidth hints.
type BandwidthConfig struct {
	Up   string `yaml:"up,omitempty"`
	Down string `yaml:"down,omitempty"`
}

// LogConfig is the client logging block.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Fixed TUN parameters shared with the service controller.
const (
	TunName     = "hytun"
	TunTimeout  = "5m"
	resolveWait = 3 * time.Second
)

// privateIPv4Ranges are always excluded from tunnel routing: loopback, the
// three RFC1918 blocks, multicast, reserved, and link-local.
var privateIPv4Ranges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"169.254.0.0/16",
}

// Options carries the per-deployment parts of the emitted document.
type Options struct {
	LogLevel string
	LogFile  string
}

// Emitter turns validated node profiles into hysteria client configs.
type Emitter struct {
	resolver *net.Resolver
}

// New creates an emitter using the default resolver.
func New() *Emitter {
	return &Emitter{resolver: net.DefaultResolver}
}

// Build assembles the config document for a validated node. It never fails
// for a structurally valid profile: name resolution is best-effort and falls
// back to the literal server string.
func (e *Emitter) Build(ctx context.Context, node *models.Node, opts Options) *ClientConfig {
	sni := node.SNI
	if sni == "" {
		sni = node.Server
	}

	mtu := node.MTU
	if mtu <= 0 {
		mtu = models.DefaultMTU
	}

	cfg := &ClientConfig{
		Server: net.JoinHostPort(node.Server, strconv.Itoa(node.Port)),
		Auth:   node.Secret,
		TLS: TLSConfig{
			SNI:      sni,
			Insecure: node.Insecure,
			ALPN:     node.ALPN,
		},
		Tun: TunConfig{
			Name:    TunName,
			MTU:     mtu,
			Timeout: TunTimeout,
			Route: RouteConfig{
				IPv4: []string{"0.0.0.0/0"},
				IPv6: []string{"2000::/3"},
			},
		},
		Log: LogConfig{
			Level: opts.LogLevel,
			File:  opts.LogFile,
		},
	}

	if node.Obfs != "" {
		cfg.Obfs = &ObfsConfig{Type: node.Obfs, Password: node.ObfsPassword}
	}

	if node.BandwidthUp != "" || node.BandwidthDown != "" {
		cfg.Bandwidth = &BandwidthConfig{Up: node.BandwidthUp, Down: node.BandwidthDown}
	}

	// Exclude the upstream server itself so tunnel traffic to it is not
	// routed back into the tunnel, then the fixed private/reserved ranges.
	addr := e.resolveServer(ctx, node.Server)
	if ip := net.ParseIP(addr); ip != nil && ip.To4() == nil {
		cfg.Tun.Route.IPv6Exclude = []string{addr + "/128"}
	} else {
		cfg.Tun.Route.IPv4Exclude = []string{addr + "/32"}
	}
	cfg.Tun.Route.IPv4Exclude = append(cfg.Tun.Route.IPv4Exclude, privateIPv4Ranges...)

	return cfg
}

// Emit serializes the config document for a validated node.
func (e *Emitter) Emit(ctx context.Context, node *models.Node, opts Options) ([]byte, error) {
	return yaml.Marshal(e.Build(ctx, node, opts))
}

// resolveServer resolves a server name to a literal address. Literal IPs
// pass through; resolution failures fall back to the original string, which
// only reduces the precision of the route exclusion.
func (e *Emitter) resolveServer(ctx context.Context, server string) string {
	if ip := net.ParseIP(server); ip != nil {
		return server
	}

	rctx, cancel := context.WithTimeout(ctx, resolveWait)
	defer cancel()

	addrs, err := e.resolver.LookupHost(rctx, server)
	if err != nil || len(addrs) == 0 {
		return server
	}

	// Prefer an IPv4 address when the host has both.
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}
