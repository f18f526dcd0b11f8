package runtime

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TokenCounter estimates token counts for accounting. The engine treats it as
// an injectable collaborator; the default is a hash-based placeholder, not a
// real vocabulary.
type TokenCounter interface {
	Count(text string) int
}

// HashTokenizer maps whitespace-separated words to synthetic token ids by
// hashing. Deterministic and vocabulary-free.
type HashTokenizer struct{}

// NewHashTokenizer returns the placeholder tokenizer.
func NewHashTokenizer() HashTokenizer { return HashTokenizer{} }

// Encode hashes each word to a 32-bit synthetic token id.
func (HashTokenizer) Encode(text string) []uint32 {
	fields := strings.Fields(text)
	ids := make([]uint32, len(fields))
	for i, f := range fields {
		ids[i] = uint32(xxhash.Sum64String(f))
	}
	return ids
}

// Count returns the number of synthetic tokens in text.
func (h HashTokenizer) Count(text string) int { return len(strings.Fields(text)) }
