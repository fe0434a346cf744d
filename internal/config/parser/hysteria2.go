package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

// Hysteria2Parser implements Parser for Hysteria2 share links.
//
// Link format: hy2://secret@host[:port][/][?params][#label]
// Accepted schemes: hy2, hysteria2, hysteria. Inside the query, "/" is
// treated as a separator synonym for "&" because clients in the wild emit
// both.
type Hysteria2Parser struct{}

func (p *Hysteria2Parser) Protocol() string {
	return "hysteria2"
}

func (p *Hysteria2Parser) Parse(uri string) (*models.Node, error) {
	raw := strings.TrimSpace(uri)

	// Percent-decode the whole link up front. Invalid escapes are left
	// as-is rather than failing the parse.
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	rest, err := stripScheme(decoded, raw)
	if err != nil {
		return nil, err
	}

	// Fragment becomes the display name.
	var label string
	if idx := strings.Index(rest, "#"); idx != -1 {
		label = rest[idx+1:]
		rest = rest[:idx]
	}

	// Split off the query.
	var queryStr string
	if idx := strings.Index(rest, "?"); idx != -1 {
		queryStr = rest[idx+1:]
		rest = rest[:idx]
	}
	rest = strings.TrimSuffix(rest, "/")

	// secret@host[:port] — split on the last "@" so secrets containing "@"
	// in percent-encoded form survive.
	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return nil, &pkgerrors.ParseError{Input: raw, Reason: "missing '@' separator"}
	}
	secret := rest[:at]
	if secret == "" {
		return nil, &pkgerrors.ParseError{Input: raw, Reason: "empty auth secret"}
	}

	host, port, perr := splitHostPort(rest[at+1:], raw)
	if perr != nil {
		return nil, perr
	}

	params := parseQuery(queryStr)

	node := &models.Node{
		Server: host,
		Port:   port,
		Secret: secret,
		SNI:    params.first("sni"),
		Obfs:   params.first("obfs"),
		MTU:    models.DefaultMTU,
		Group:  models.DefaultGroup,
	}

	if node.SNI == "" {
		node.SNI = host
	}

	switch params.first("insecure") {
	case "1", "true", "True":
		node.Insecure = true
	}

	// Either spelling is accepted; first non-empty wins.
	node.ObfsPassword = params.first("obfs-password")
	if node.ObfsPassword == "" {
		node.ObfsPassword = params.first("obfs_password")
	}

	if alpn := params.first("alpn"); alpn != "" {
		node.ALPN = strings.Split(alpn, ",")
	}

	node.BandwidthUp = params.first("up")
	node.BandwidthDown = params.first("down")

	if mtu := params.first("mtu"); mtu != "" {
		n, err := strconv.Atoi(mtu)
		if err != nil || n <= 0 {
			return nil, &pkgerrors.ParseError{Input: raw, Reason: "invalid mtu: " + mtu}
		}
		node.MTU = n
	}

	node.Name = label
	if node.Name == "" {
		node.Name = params.first("name")
	}
	if node.Name == "" {
		node.Name = fmt.Sprintf("%s:%d", node.Server, node.Port)
	}

	now := time.Now()
	node.ID = NewNodeID(node.Server, node.Port, now)
	node.CreatedAt = now
	node.UpdatedAt = now

	return node, nil
}

func (p *Hysteria2Parser) Encode(node *models.Node) (string, error) {
	if err := p.Validate(node); err != nil {
		return "", err
	}

	host := node.Server
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	var b strings.Builder
	b.WriteString("hy2://")
	b.WriteString(url.PathEscape(node.Secret))
	b.WriteString("@")
	b.WriteString(host)
	fmt.Fprintf(&b, ":%d", node.Port)

	query := url.Values{}
	if node.SNI != "" && node.SNI != node.Server {
		query.Set("sni", node.SNI)
	}
	if node.Insecure {
		query.Set("insecure", "1")
	}
	if node.Obfs != "" {
		query.Set("obfs", node.Obfs)
		if node.ObfsPassword != "" {
			query.Set("obfs-password", node.ObfsPassword)
		}
	}
	if len(node.ALPN) > 0 {
		query.Set("alpn", strings.Join(node.ALPN, ","))
	}
	if node.BandwidthUp != "" {
		query.Set("up", node.BandwidthUp)
	}
	if node.BandwidthDown != "" {
		query.Set("down", node.BandwidthDown)
	}
	if node.MTU != 0 && node.MTU != models.DefaultMTU {
		query.Set("mtu", strconv.Itoa(node.MTU))
	}

	if encoded := query.Encode(); encoded != "" {
		b.WriteString("/?")
		b.WriteString(encoded)
	}

	if node.Name != "" {
		b.WriteString("#")
		b.WriteString(url.PathEscape(node.Name))
	}

	return b.String(), nil
}

func (p *Hysteria2Parser) Validate(node *models.Node) error {
	if node.Server == "" {
		return fmt.Errorf("server is required")
	}
	if node.Port <= 0 || node.Port > 65535 {
		return fmt.Errorf("invalid port: %d", node.Port)
	}
	if node.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	return nil
}

func stripScheme(decoded, raw string) (string, error) {
	idx := strings.Index(decoded, "://")
	if idx == -1 {
		return "", &pkgerrors.ParseError{Input: raw, Reason: "missing protocol scheme"}
	}
	switch strings.ToLower(decoded[:idx]) {
	case "hy2", "hysteria2", "hysteria":
		return decoded[idx+3:], nil
	default:
		return "", &pkgerrors.ParseError{Input: raw, Reason: "unsupported protocol: " + decoded[:idx]}
	}
}

// splitHostPort handles domain, IPv4 and bracketed IPv6 hosts with an
// optional port (default 443).
func splitHostPort(hostport, raw string) (string, int, *pkgerrors.ParseError) {
	var host, portStr string

	if strings.HasPrefix(hostport, "[") {
		end := strings.Index(hostport, "]")
		if end == -1 {
			return "", 0, &pkgerrors.ParseError{Input: raw, Reason: "unterminated IPv6 address"}
		}
		host = hostport[1:end]
		rest := hostport[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return "", 0, &pkgerrors.ParseError{Input: raw, Reason: "malformed address: " + hostport}
			}
			portStr = rest[1:]
		}
	} else if idx := strings.LastIndex(hostport, ":"); idx != -1 {
		host = hostport[:idx]
		portStr = hostport[idx+1:]
	} else {
		host = hostport
	}

	if host == "" {
		return "", 0, &pkgerrors.ParseError{Input: raw, Reason: "missing server host"}
	}

	port := 443
	if portStr != "" {
		n, err := strconv.Atoi(portStr)
		if err != nil || n < 1 || n > 65535 {
			return "", 0, &pkgerrors.ParseError{Input: raw, Reason: "invalid port: " + portStr}
		}
		port = n
	}

	return host, port, nil
}

// queryParams preserves the first value seen for each key.
type queryParams map[string]string

func (q queryParams) first(key string) string { return q[key] }

// parseQuery splits the query on both "&" and "/" and keeps the first value
// per key. Pairs without "=" are treated as flags with an empty value.
func parseQuery(s string) queryParams {
	params := make(queryParams)
	if s == "" {
		return params
	}
	pairs := strings.FieldsFunc(s, func(r rune) bool {
		return r == '&' || r == '/'
	})
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		if _, seen := params[key]; !seen {
			params[key] = value
		}
	}
	return params
}
