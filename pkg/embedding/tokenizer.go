package embedding

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken is a BPE tokenizer.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer loads a named tiktoken encoding such as "cl100k_base".
func NewTokenizer(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("embedding: load encoding %q: %w: %w", encoding, ErrUnavailable, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode drops bytes of a multi-byte rune cut by a window boundary.
func (t *Tiktoken) Decode(tokens []int) string {
	return strings.ToValidUTF8(t.enc.Decode(tokens), "")
}

// DecodeBytes returns the raw bytes of tokens, which may begin or end inside
// a multi-byte rune.
func (t *Tiktoken) DecodeBytes(tokens []int) []byte {
	return []byte(t.enc.Decode(tokens))
}
