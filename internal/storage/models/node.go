package models

import "time"

// Node represents a Hysteria2 node profile parsed from a share link or
// entered manually.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Connection details
	Server string `json:"server"`
	Port   int    `json:"port"`
	Secret string `json:"auth"`

	// TLS details
	SNI      string   `json:"sni,omitempty"`
	Insecure bool     `json:"insecure"`
	ALPN     []string `json:"alpn,omitempty"`

	// Obfuscation (optional, passed through to the hysteria process)
	Obfs         string `json:"obfs,omitempty"`
	ObfsPassword string `json:"obfs_password,omitempty"`

	// Bandwidth hints (opaque strings, e.g. "100 mbps")
	BandwidthUp   string `json:"up,omitempty"`
	BandwidthDown string `json:"down,omitempty"`

	// TUN device MTU
	MTU int `json:"mtu"`

	// Metadata
	Group  string `json:"group"`
	Source string `json:"source,omitempty"` // "manual" or "subscription"

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

// DefaultMTU is used when a link carries no mtu parameter.
const DefaultMTU = 1500

// DefaultGroup is the group assigned to nodes without an explicit one.
const DefaultGroup = "default"

// NodePatch carries partial updates for a node. Nil fields are left
// untouched.
type NodePatch struct {
	Name          *string   `json:"name,omitempty"`
	Server        *string   `json:"server,omitempty"`
	Port          *int      `json:"port,omitempty"`
	Secret        *string   `json:"auth,omitempty"`
	SNI           *string   `json:"sni,omitempty"`
	Insecure      *bool     `json:"insecure,omitempty"`
	ALPN          *[]string `json:"alpn,omitempty"`
	Obfs          *string   `json:"obfs,omitempty"`
	ObfsPassword  *string   `json:"obfs_password,omitempty"`
	BandwidthUp   *string   `json:"up,omitempty"`
	BandwidthDown *string   `json:"down,omitempty"`
	MTU           *int      `json:"mtu,omitempty"`
	Group         *string   `json:"group,omitempty"`
}

// Subscription records an imported subscription source.
type Subscription struct {
	URL        string     `json:"url"`
	Name       string     `json:"name"`
	LastImport *time.Time `json:"last_import,omitempty"`
	NodeCount  int        `json:"node_count"`
}

// NodeDocument is the persisted registry document: the full node list, the
// id of the currently active node (empty when none), and the subscription
// sources nodes were imported from.
type NodeDocument struct {
	Nodes         []*Node         `json:"nodes"`
	Current       string          `json:"current,omitempty"`
	Subscriptions []*Subscription `json:"subscriptions"`
}
