package objectkey

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for an uploaded file
	GenerateKey(originalName string) string
}

// TimestampGenerator prefixes file names with a millisecond timestamp token.
// Tokens are strictly increasing within one generator, so two uploads of the
// same file name in the same millisecond still get distinct keys.
//
// Format: {unix_millis}_{sanitized_filename}
type TimestampGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{now: time.Now}
}

// NewTimestampGeneratorWithClock is used by tests to pin the clock
func NewTimestampGeneratorWithClock(now func() time.Time) *TimestampGenerator {
	return &TimestampGenerator{now: now}
}

func (g *TimestampGenerator) GenerateKey(originalName string) string {
	g.mu.Lock()
	token := g.now().UnixMilli()
	if token <= g.last {
		token = g.last + 1
	}
	g.last = token
	g.mu.Unlock()

	return fmt.Sprintf("%d_%s", token, sanitizeFilename(originalName))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(originalName string) string
}

func NewCustomFuncGenerator(fn func(originalName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(originalName string) string {
	return g.GenerateFunc(originalName)
}

// ParseTimestamp extracts the time token from a key produced by
// TimestampGenerator.
func ParseTimestamp(key string) (time.Time, bool) {
	token, _, found := strings.Cut(path.Base(key), "_")
	if !found {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(token, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "file"
	}
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"#", "_",
		"%", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
