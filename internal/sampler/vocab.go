// Package sampler implements token sampling and BPE encode/decode for
// the REPL harness, grounded on the teacher's x/imagegen/tokenizer
// package (bpe.go's lowest-rank merge loop, byte-level rune table) with
// the WordPiece/SentencePiece branches dropped: spec.md §3 names a
// single GPT-2-style byte-level BPE vocabulary sourced from GGUF
// "tokenizer.ggml.tokens"/"tokenizer.ggml.merges" arrays.
package sampler

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Vocab holds the token table and merge-rank table resolved from a
// GGUF file's tokenizer.ggml.* arrays.
type Vocab struct {
	Tokens     []string
	reverse    map[string]int32
	mergeRanks *orderedmap.OrderedMap[string, int]
	byteEncode [256]rune
	byteDecode map[rune]byte
}

// NewVocab builds the reverse lookup and merge-rank tables once at load
// time. merges is in file order, which is also priority order (the
// earliest-listed pair merges first) — go-ordered-map/v2 preserves that
// insertion order for iteration and rank lookup stays O(1) either way.
func NewVocab(tokens, merges []string) *Vocab {
	v := &Vocab{
		Tokens:     tokens,
		reverse:    make(map[string]int32, len(tokens)),
		mergeRanks: orderedmap.New[string, int](len(merges)),
	}
	for id, tok := range tokens {
		v.reverse[tok] = int32(id)
	}
	for rank, pair := range merges {
		v.mergeRanks.Set(pair, rank)
	}
	v.byteEncode, v.byteDecode = buildByteTables()
	return v
}

func (v *Vocab) rank(pair string) (int, bool) {
	return v.mergeRanks.Get(pair)
}

// ID returns a token's vocabulary index.
func (v *Vocab) ID(token string) (int32, bool) {
	id, ok := v.reverse[token]
	return id, ok
}

// buildByteTables constructs the GPT-2 byte-level encoding: every byte
// value maps to a printable rune so raw bytes (including whitespace and
// control characters) can be represented inside a BPE token, and back.
// Printable ASCII/Latin-1 bytes map to themselves; all other byte values
// are shifted into the codepoint range starting at 256, per the scheme
// OpenAI's GPT-2 tokenizer popularized.
func buildByteTables() ([256]rune, map[rune]byte) {
	var encode [256]rune
	decode := make(map[rune]byte, 256)

	printable := map[int]bool{}
	for i := int('!'); i <= int('~'); i++ {
		printable[i] = true
	}
	for i := int('¡'); i <= int('¬'); i++ {
		printable[i] = true
	}
	for i := int('®'); i <= int('ÿ'); i++ {
		printable[i] = true
	}

	next := 256
	for b := 0; b < 256; b++ {
		var r rune
		if printable[b] {
			r = rune(b)
		} else {
			r = rune(next)
			next++
		}
		encode[b] = r
		decode[r] = byte(b)
	}
	return encode, decode
}
