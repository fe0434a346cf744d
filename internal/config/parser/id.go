package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// NewNodeID derives a short node identifier from the endpoint and the
// submission time. Two imports of the same link therefore get distinct ids;
// callers must not assume the id is reproducible.
func NewNodeID(server string, port int, t time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", server, port, t.UnixNano())))
	return hex.EncodeToString(sum[:])[:8]
}
