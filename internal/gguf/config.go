package gguf

import "fmt"

// ModelConfig is the immutable-after-load configuration of spec.md §3,
// resolved from required GGUF metadata keys. Hard-coded architecture
// defaults (the reference gguf_loader.c shortcut spec.md §9 calls out)
// are test-fixture-only; production parsing always goes through
// ModelConfigFromFile.
type ModelConfig struct {
	VocabSize     int
	EmbeddingDim  int
	NLayers       int
	NHeads        int
	NKVHeads      int
	HeadDim       int
	FFNHiddenDim  int
	MaxSeqLen     int
	RopeTheta     float32
	NormEps       float32
	BOSID         int32
	EOSID         int32
	Tokens        []string
	Merges        []string
}

// ModelConfigFromFile resolves every key spec.md §4.1 lists as consulted.
// It fails with MissingMetadata(key) when embedding_length, block_count,
// attention.head_count, feed_forward_length or tokenizer.ggml.tokens is
// absent (vocab_size falls back to the token array's length). The other
// keys fall back to defaults: head_count_kv to head_count,
// context_length to 2048, rope.freq_base to 10000, the RMS epsilon to
// 1e-5, BOS to 1, EOS to 2, and merges to none.
func ModelConfigFromFile(f *File) (ModelConfig, error) {
	var cfg ModelConfig

	vocabSize, err := f.RequireKeyValue("vocab_size")
	if err != nil {
		// Some producers only emit the token array, not an explicit
		// vocab_size scalar; fall back to the array length.
		tokens, terr := f.RequireKeyValue("tokenizer.ggml.tokens")
		if terr != nil {
			return cfg, err
		}
		cfg.Tokens = tokens.StringArray()
		cfg.VocabSize = len(cfg.Tokens)
	} else {
		cfg.VocabSize = vocabSize.Int()
	}

	embd, err := f.RequireKeyValue("embedding_length")
	if err != nil {
		return cfg, err
	}
	cfg.EmbeddingDim = embd.Int()

	nLayers, err := f.RequireKeyValue("block_count")
	if err != nil {
		return cfg, err
	}
	cfg.NLayers = nLayers.Int()

	nHeads, err := f.RequireKeyValue("attention.head_count")
	if err != nil {
		return cfg, err
	}
	cfg.NHeads = nHeads.Int()

	if nKVHeads, ok := f.KeyValue("attention.head_count_kv"); ok {
		cfg.NKVHeads = nKVHeads.Int()
	} else {
		cfg.NKVHeads = cfg.NHeads
	}
	if cfg.NKVHeads > cfg.NHeads || cfg.NKVHeads <= 0 {
		return cfg, fmt.Errorf("invalid n_kv_heads %d for n_heads %d", cfg.NKVHeads, cfg.NHeads)
	}

	if cfg.NHeads == 0 {
		return cfg, fmt.Errorf("n_heads must be non-zero")
	}
	cfg.HeadDim = cfg.EmbeddingDim / cfg.NHeads

	ffn, err := f.RequireKeyValue("feed_forward_length")
	if err != nil {
		return cfg, err
	}
	cfg.FFNHiddenDim = ffn.Int()

	if ctxLen, ok := f.KeyValue("context_length"); ok {
		cfg.MaxSeqLen = ctxLen.Int()
	} else {
		cfg.MaxSeqLen = 2048
	}

	if theta, ok := f.KeyValue("rope.freq_base"); ok {
		cfg.RopeTheta = float32(theta.Float())
	} else {
		cfg.RopeTheta = 10000.0
	}

	if eps, ok := f.KeyValue("attention.layer_norm_rms_epsilon"); ok {
		cfg.NormEps = float32(eps.Float())
	} else {
		cfg.NormEps = 1e-5
	}

	if cfg.Tokens == nil {
		tokens, err := f.RequireKeyValue("tokenizer.ggml.tokens")
		if err != nil {
			return cfg, err
		}
		cfg.Tokens = tokens.StringArray()
	}
	if merges, ok := f.KeyValue("tokenizer.ggml.merges"); ok {
		cfg.Merges = merges.StringArray()
	}

	if bos, ok := f.KeyValue("tokenizer.ggml.bos_token_id"); ok {
		cfg.BOSID = int32(bos.Int())
	} else {
		cfg.BOSID = 1
	}
	if eos, ok := f.KeyValue("tokenizer.ggml.eos_token_id"); ok {
		cfg.EOSID = int32(eos.Int())
	} else {
		cfg.EOSID = 2
	}

	return cfg, nil
}
