package parser

import (
	"strings"

	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

// Parser defines the interface for protocol parsers
type Parser interface {
	// Parse parses a share link into a Node
	Parse(uri string) (*models.Node, error)

	// Encode encodes a Node back into a share link
	Encode(node *models.Node) (string, error)

	// Protocol returns the protocol name
	Protocol() string

	// Validate validates the node structure
	Validate(node *models.Node) error
}

// Registry manages protocol parsers
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register(&Hysteria2Parser{})

	return r
}

// Register registers a new parser
func (r *Registry) Register(parser Parser) {
	r.parsers[strings.ToLower(parser.Protocol())] = parser
}

// Get retrieves a parser by protocol name
func (r *Registry) Get(protocol string) (Parser, bool) {
	parser, ok := r.parsers[strings.ToLower(protocol)]
	return parser, ok
}

// AutoDetect automatically detects the protocol from a link and returns the
// appropriate parser.
func (r *Registry) AutoDetect(uri string) (Parser, error) {
	uri = strings.TrimSpace(uri)

	idx := strings.Index(uri, "://")
	if idx == -1 {
		return nil, &pkgerrors.ParseError{Input: uri, Reason: "missing protocol scheme"}
	}

	protocol := strings.ToLower(uri[:idx])

	// Handle aliases
	switch protocol {
	case "hy2", "hysteria":
		protocol = "hysteria2"
	}

	parser, ok := r.Get(protocol)
	if !ok {
		return nil, &pkgerrors.ParseError{Input: uri, Reason: "unsupported protocol: " + protocol}
	}

	return parser, nil
}

// Parse parses a link using the auto-detected protocol.
func (r *Registry) Parse(uri string) (*models.Node, error) {
	parser, err := r.AutoDetect(uri)
	if err != nil {
		return nil, err
	}

	return parser.Parse(uri)
}

// ListProtocols returns a list of all supported protocols
func (r *Registry) ListProtocols() []string {
	protocols := make([]string, 0, len(r.parsers))
	for protocol := range r.parsers {
		protocols = append(protocols, protocol)
	}
	return protocols
}
