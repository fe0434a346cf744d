package parser

import (
	"errors"
	"reflect"
	"testing"

	pkgerrors "hytun/pkg/errors"
)

func TestHysteria2Parse(t *testing.T) {
	p := &Hysteria2Parser{}

	tests := []struct {
		name     string
		uri      string
		server   string
		port     int
		secret   string
		sni      string
		insecure bool
		label    string
	}{
		{
			name:     "full link",
			uri:      "hy2://secretpw@example.com:443?insecure=1&sni=foo.com#MyNode",
			server:   "example.com",
			port:     443,
			secret:   "secretpw",
			sni:      "foo.com",
			insecure: true,
			label:    "MyNode",
		},
		{
			name:   "default port",
			uri:    "hy2://pw@example.com#Named",
			server: "example.com",
			port:   443,
			secret: "pw",
			sni:    "example.com",
			label:  "Named",
		},
		{
			name:   "hysteria2 scheme",
			uri:    "hysteria2://pw@example.com:8443",
			server: "example.com",
			port:   8443,
			secret: "pw",
			sni:    "example.com",
			label:  "example.com:8443",
		},
		{
			name:   "hysteria scheme",
			uri:    "hysteria://pw@example.com:8443",
			server: "example.com",
			port:   8443,
			secret: "pw",
			sni:    "example.com",
			label:  "example.com:8443",
		},
		{
			name:   "bracketed ipv6",
			uri:    "hy2://pw@[2001:db8::1]:9443#v6",
			server: "2001:db8::1",
			port:   9443,
			secret: "pw",
			sni:    "2001:db8::1",
			label:  "v6",
		},
		{
			name:   "percent encoded secret",
			uri:    "hy2://p%40ss@example.com:443",
			server: "example.com",
			port:   443,
			secret: "p@ss",
			sni:    "example.com",
			label:  "example.com:443",
		},
		{
			name:     "insecure true spelling",
			uri:      "hy2://pw@example.com:443?insecure=true",
			server:   "example.com",
			port:     443,
			secret:   "pw",
			sni:      "example.com",
			insecure: true,
			label:    "example.com:443",
		},
		{
			name:     "insecure capitalized True spelling",
			uri:      "hy2://pw@example.com:443?insecure=True",
			server:   "example.com",
			port:     443,
			secret:   "pw",
			sni:      "example.com",
			insecure: true,
			label:    "example.com:443",
		},
		{
			name:   "insecure all-caps TRUE is false",
			uri:    "hy2://pw@example.com:443?insecure=TRUE",
			server: "example.com",
			port:   443,
			secret: "pw",
			sni:    "example.com",
			label:  "example.com:443",
		},
		{
			name:   "insecure zero is false",
			uri:    "hy2://pw@example.com:443?insecure=0",
			server: "example.com",
			port:   443,
			secret: "pw",
			sni:    "example.com",
			label:  "example.com:443",
		},
		{
			name:   "name param fallback",
			uri:    "hy2://pw@example.com:443?name=FromParam",
			server: "example.com",
			port:   443,
			secret: "pw",
			sni:    "example.com",
			label:  "FromParam",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := p.Parse(tt.uri)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.uri, err)
			}
			if node.Server != tt.server {
				t.Errorf("server = %q, want %q", node.Server, tt.server)
			}
			if node.Port != tt.port {
				t.Errorf("port = %d, want %d", node.Port, tt.port)
			}
			if node.Secret != tt.secret {
				t.Errorf("secret = %q, want %q", node.Secret, tt.secret)
			}
			if node.SNI != tt.sni {
				t.Errorf("sni = %q, want %q", node.SNI, tt.sni)
			}
			if node.Insecure != tt.insecure {
				t.Errorf("insecure = %v, want %v", node.Insecure, tt.insecure)
			}
			if node.Name != tt.label {
				t.Errorf("name = %q, want %q", node.Name, tt.label)
			}
			if node.ID == "" {
				t.Error("node ID was not assigned")
			}
		})
	}
}

func TestHysteria2ParseSlashSeparatedQuery(t *testing.T) {
	p := &Hysteria2Parser{}

	node, err := p.Parse("hy2://pw@example.com:443/?obfs=salamander/obfs-password=xyz/alpn=h3,h2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if node.Obfs != "salamander" {
		t.Errorf("obfs = %q, want salamander", node.Obfs)
	}
	if node.ObfsPassword != "xyz" {
		t.Errorf("obfs password = %q, want xyz", node.ObfsPassword)
	}
	if want := []string{"h3", "h2"}; !reflect.DeepEqual(node.ALPN, want) {
		t.Errorf("alpn = %v, want %v", node.ALPN, want)
	}
}

func TestHysteria2ParseUnderscoreObfsPassword(t *testing.T) {
	p := &Hysteria2Parser{}

	node, err := p.Parse("hy2://pw@example.com:443?obfs=salamander&obfs_password=abc")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if node.ObfsPassword != "abc" {
		t.Errorf("obfs password = %q, want abc", node.ObfsPassword)
	}
}

func TestHysteria2ParseFirstQueryValueWins(t *testing.T) {
	p := &Hysteria2Parser{}

	node, err := p.Parse("hy2://pw@example.com:443?sni=first.com&sni=second.com")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if node.SNI != "first.com" {
		t.Errorf("sni = %q, want first.com", node.SNI)
	}
}

func TestHysteria2ParseErrors(t *testing.T) {
	p := &Hysteria2Parser{}

	tests := []struct {
		name string
		uri  string
	}{
		{"missing scheme", "example.com:443"},
		{"unsupported scheme", "vless://uuid@example.com:443"},
		{"missing at separator", "hy2://example.com:443"},
		{"empty secret", "hy2://@example.com:443"},
		{"missing host", "hy2://pw@:443"},
		{"invalid port", "hy2://pw@example.com:99999"},
		{"non numeric port", "hy2://pw@example.com:abc"},
		{"unterminated ipv6", "hy2://pw@[2001:db8::1:443"},
		{"invalid mtu", "hy2://pw@example.com:443?mtu=zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.uri)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.uri)
			}
			if !errors.Is(err, pkgerrors.ErrInvalidLink) {
				t.Errorf("error %v does not wrap ErrInvalidLink", err)
			}
		})
	}
}

func TestHysteria2EncodeRoundTrip(t *testing.T) {
	p := &Hysteria2Parser{}

	original, err := p.Parse("hy2://secretpw@example.com:8443?insecure=1&sni=foo.com&obfs=salamander&obfs-password=xyz&up=50mbps&down=100mbps#MyNode")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	encoded, err := p.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	parsed, err := p.Parse(encoded)
	if err != nil {
		t.Fatalf("reparse of %q failed: %v", encoded, err)
	}

	if parsed.Server != original.Server || parsed.Port != original.Port {
		t.Errorf("endpoint changed: got %s:%d, want %s:%d", parsed.Server, parsed.Port, original.Server, original.Port)
	}
	if parsed.Secret != original.Secret {
		t.Errorf("secret changed: got %q, want %q", parsed.Secret, original.Secret)
	}
	if parsed.SNI != original.SNI {
		t.Errorf("sni changed: got %q, want %q", parsed.SNI, original.SNI)
	}
	if parsed.Insecure != original.Insecure {
		t.Errorf("insecure changed")
	}
	if parsed.Obfs != original.Obfs || parsed.ObfsPassword != original.ObfsPassword {
		t.Errorf("obfs changed")
	}
	if parsed.BandwidthUp != original.BandwidthUp || parsed.BandwidthDown != original.BandwidthDown {
		t.Errorf("bandwidth changed")
	}
	if parsed.Name != original.Name {
		t.Errorf("name changed: got %q, want %q", parsed.Name, original.Name)
	}
}

func TestRegistryAutoDetect(t *testing.T) {
	r := NewRegistry()

	for _, uri := range []string{
		"hy2://pw@example.com:443",
		"hysteria2://pw@example.com:443",
		"hysteria://pw@example.com:443",
	} {
		if _, err := r.Parse(uri); err != nil {
			t.Errorf("Parse(%q) failed: %v", uri, err)
		}
	}

	if _, err := r.Parse("trojan://pw@example.com:443"); err == nil {
		t.Error("Parse accepted an unsupported scheme")
	}
}
