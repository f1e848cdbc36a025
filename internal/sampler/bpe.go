package sampler

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// gpt2SplitPattern is the canonical GPT-2 pretokenizer regex. The
// negative lookahead in the trailing whitespace alternative
// (`\s+(?!\S)`) has no RE2 equivalent, which is why this package uses
// dlclark/regexp2 instead of the standard library's regexp.
const gpt2SplitPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

var splitRe = regexp2.MustCompile(gpt2SplitPattern, regexp2.None)

// Encode tokenizes text into vocabulary IDs: pretokenize with the GPT-2
// split pattern, byte-level encode each chunk, then repeatedly merge the
// lowest-rank adjacent pair until no merge applies, mirroring
// x/imagegen/tokenizer/bpe.go's encodeBPEMerge loop.
func (v *Vocab) Encode(text string) []int32 {
	var ids []int32
	for _, chunk := range splitChunks(text) {
		ids = v.encodeChunk(chunk, ids)
	}
	return ids
}

func splitChunks(text string) []string {
	var chunks []string
	m, _ := splitRe.FindStringMatch(text)
	for m != nil {
		chunks = append(chunks, m.String())
		m, _ = splitRe.FindNextMatch(m)
	}
	return chunks
}

func (v *Vocab) encodeChunk(chunk string, ids []int32) []int32 {
	if chunk == "" {
		return ids
	}
	var sb strings.Builder
	sb.Grow(len(chunk) * 2)
	for i := 0; i < len(chunk); i++ {
		sb.WriteRune(v.byteEncode[chunk[i]])
	}
	encoded := sb.String()

	if id, ok := v.ID(encoded); ok {
		return append(ids, id)
	}
	return v.mergeParts(encoded, ids)
}

func (v *Vocab) mergeParts(encoded string, ids []int32) []int32 {
	runes := []rune(encoded)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}

	for len(parts) > 1 {
		minRank := int(^uint(0) >> 1)
		minIdx := -1
		for i := 0; i < len(parts)-1; i++ {
			if rank, ok := v.rank(parts[i] + " " + parts[i+1]); ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}
		if minIdx < 0 {
			break
		}
		parts[minIdx] += parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}

	for _, part := range parts {
		if id, ok := v.ID(part); ok {
			ids = append(ids, id)
			continue
		}
		for _, b := range []byte(part) {
			if id, ok := v.ID(string(v.byteEncode[b])); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Decode concatenates each token's surface form and reverses the
// byte-level encoding back into raw UTF-8 text.
func (v *Vocab) Decode(ids []int32) string {
	var raw strings.Builder
	for _, id := range ids {
		if id < 0 || int(id) >= len(v.Tokens) {
			continue
		}
		for _, r := range v.Tokens[id] {
			if b, ok := v.byteDecode[r]; ok {
				raw.WriteByte(b)
			}
		}
	}
	return raw.String()
}
