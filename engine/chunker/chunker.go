// Package chunker splits article text into overlapping token windows that fit
// an embedding model's context.
package chunker

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// Tokenizer is the subset of the embedding model the chunker needs.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// ByteDecoder is implemented by byte-level tokenizers whose tokens can end
// inside a multi-byte character. Chunk uses it to keep such characters whole.
type ByteDecoder interface {
	DecodeBytes(tokens []int) []byte
}

// Params sizes the windows.
type Params struct {
	MaxWindowTokens       int
	ReservedSpecialTokens int
	OverlapRatio          float64
}

// Effective is the number of content tokens per window.
func (p Params) Effective() int { return p.MaxWindowTokens - p.ReservedSpecialTokens }

// Overlap is the number of tokens shared by consecutive windows.
func (p Params) Overlap() int { return int(math.Floor(float64(p.Effective()) * p.OverlapRatio)) }

// Step is the distance between consecutive window starts.
func (p Params) Step() int { return p.Effective() - p.Overlap() }

// Validate reports a configuration error for parameters that cannot make progress.
func (p Params) Validate() error {
	switch {
	case p.MaxWindowTokens <= 0:
		return fmt.Errorf("%w: max window tokens must be positive, got %d", domain.ErrConfiguration, p.MaxWindowTokens)
	case p.ReservedSpecialTokens < 0:
		return fmt.Errorf("%w: reserved special tokens must not be negative, got %d", domain.ErrConfiguration, p.ReservedSpecialTokens)
	case p.Effective() <= 0:
		return fmt.Errorf("%w: %d reserved tokens leave no room in a %d-token window",
			domain.ErrConfiguration, p.ReservedSpecialTokens, p.MaxWindowTokens)
	case math.IsNaN(p.OverlapRatio) || p.OverlapRatio < 0 || p.OverlapRatio >= 1:
		return fmt.Errorf("%w: overlap ratio must be in [0, 1), got %v", domain.ErrConfiguration, p.OverlapRatio)
	case p.Step() < 1:
		return fmt.Errorf("%w: overlap %d leaves a step of %d", domain.ErrConfiguration, p.Overlap(), p.Step())
	}
	return nil
}

// Span is a half-open token range [Start, End).
type Span struct {
	Start, End int
}

// Len returns the number of tokens in the span.
func (s Span) Len() int { return s.End - s.Start }

// Spans returns the windows over a sequence of n tokens.
//
// Windows start every Step tokens while the start is inside the sequence. A
// trailing window shorter than Overlap is dropped unless it is the first one:
// its tokens are already the tail of the previous window.
func Spans(n int, p Params) ([]Span, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	eff, overlap, step := p.Effective(), p.Overlap(), p.Step()
	var out []Span
	for start := 0; start < n; start += step {
		end := min(start+eff, n)
		if start != 0 && end-start < overlap {
			break
		}
		out = append(out, Span{Start: start, End: end})
	}
	return out, nil
}

// Chunk tokenizes text and decodes each window back to a string.
func Chunk(tok Tokenizer, text string, p Params) ([]string, error) {
	tokens := tok.Encode(text)
	spans, err := Spans(len(tokens), p)
	if err != nil {
		return nil, err
	}
	bd, byteLevel := tok.(ByteDecoder)
	out := make([]string, len(spans))
	for i, s := range spans {
		if byteLevel {
			out[i] = decodeAligned(bd, tokens, s)
			continue
		}
		out[i] = tok.Decode(tokens[s.Start:s.End])
	}
	return out, nil
}

// decodeAligned decodes a window so that a character cut by the end boundary
// is completed from the following tokens and its continuation bytes are
// dropped from the start of the next window. Every character lands in
// exactly one side of a boundary.
func decodeAligned(d ByteDecoder, tokens []int, s Span) string {
	b := d.DecodeBytes(tokens[s.Start:s.End])
	if s.Start > 0 {
		for len(b) > 0 && !utf8.RuneStart(b[0]) {
			b = b[1:]
		}
	}
	if s.End < len(tokens) {
		last := len(b) - 1
		for last > 0 && len(b)-last < utf8.UTFMax && !utf8.RuneStart(b[last]) {
			last--
		}
		if last >= 0 && !utf8.FullRune(b[last:]) {
			next := d.DecodeBytes(tokens[s.End:min(s.End+utf8.UTFMax, len(tokens))])
			for _, c := range next {
				if utf8.RuneStart(c) || utf8.FullRune(b[last:]) {
					break
				}
				b = append(b, c)
			}
		}
	}
	return string(b)
}

// Chunker binds a tokenizer to validated parameters.
type Chunker struct {
	tok    Tokenizer
	params Params
}

// New validates p up front so a bad configuration fails before any document is read.
func New(tok Tokenizer, p Params) (*Chunker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{tok: tok, params: p}, nil
}

// Params returns the window parameters.
func (c *Chunker) Params() Params { return c.params }

// Split chunks text. It cannot fail once the chunker is constructed.
func (c *Chunker) Split(text string) []string {
	out, _ := Chunk(c.tok, text, c.params)
	return out
}
