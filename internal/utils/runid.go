package utils

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu   sync.Mutex
	idMono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic entropy keeps IDs minted in the same millisecond increasing
	idMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewRunID returns a time-sortable ULID string for a backtest run.
func NewRunID() string {
	return NewRunIDAt(time.Now())
}

// NewRunIDAt returns a ULID whose timestamp part is t.
func NewRunIDAt(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), idMono)
	if err != nil {
		// Only fails when entropy is exhausted within one millisecond
		panic(err)
	}
	return id.String()
}

// IsRunID reports whether s parses as a ULID.
func IsRunID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
