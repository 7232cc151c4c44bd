package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{TempMessagePrefix, ConnPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}

		if _, err := ulid.Parse(parts[1]); err != nil {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	tempID := NewTempMessageID()
	connID := NewConnID()

	if !strings.HasPrefix(tempID.String(), "tmp_") {
		t.Errorf("TempMessageID should start with 'tmp_', got: %s", tempID)
	}
	if !strings.HasPrefix(connID.String(), "conn_") {
		t.Errorf("ConnID should start with 'conn_', got: %s", connID)
	}
}

func TestTempIDsSortable(t *testing.T) {
	// ULIDs generated in sequence must sort in generation order so pending
	// messages keep their send order.
	prev := NewTempMessageID().String()
	for i := 0; i < 50; i++ {
		next := NewTempMessageID().String()
		if next < prev {
			t.Fatalf("IDs out of order: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	seen := make(chan string, workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				seen <- gen.Generate().String()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]struct{})
	for id := range seen {
		if _, dup := unique[id]; dup {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		unique[id] = struct{}{}
	}
}
