// Package id provides centralized ID generation for the widget backend.
//
// Temporary message IDs are ULIDs: lexicographically sortable, so pending
// messages keep their send order before the server assigns permanent IDs,
// and prefixed so logs stay readable (tmp_*, conn_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TempMessageID identifies a message before the server assigns a permanent id.
type TempMessageID string

// ConnID identifies a widget WebSocket connection.
type ConnID string

const (
	TempMessagePrefix = "tmp"
	ConnPrefix        = "conn"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a ULID generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTempMessageID generates a temporary message ID.
func NewTempMessageID() TempMessageID {
	return TempMessageID(Default().GenerateWithPrefix(TempMessagePrefix))
}

// NewConnID generates a WebSocket connection ID.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id TempMessageID) String() string { return string(id) }
func (id ConnID) String() string        { return string(id) }
