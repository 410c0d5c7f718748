// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector size used when none is configured.
const DefaultHashDimensions = 512

// Feature weights. Whole words dominate so that spans sharing vocabulary
// score high; character trigrams give partial credit for morphological
// variants ("optimiser", "optimizer").
const (
	wordWeight    = 1.0
	bigramWeight  = 0.7
	trigramWeight = 0.35
)

// HashEmbedder maps text to a signed feature-hashing vector built from word
// tokens, adjacent word pairs, and character trigrams. It is deterministic
// and needs no model, so identical text always embeds identically.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hashing embedder with the given vector size.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed returns the L2-normalized feature vector of text. Text with no
// letters or digits embeds to the zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float64, h.dims)
	words := hashWords(text)

	for i, w := range words {
		h.add(v, "w:"+w, wordWeight)
		if i > 0 {
			h.add(v, "b:"+words[i-1]+" "+w, bigramWeight)
		}
		runes := []rune(" " + w + " ")
		for j := 0; j+3 <= len(runes); j++ {
			h.add(v, "c:"+string(runes[j:j+3]), trigramWeight)
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, h.dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out, nil
}

// hashWords splits lowercased text into words of letters, digits and
// internal hyphens. Dash-only fragments are dropped.
func hashWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	words := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			words = append(words, f)
		}
	}
	return words
}

// EmbedBatch embeds each text in order.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedAll(ctx, texts, h.Embed)
}

// Dimensions returns the vector size.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// ModelName includes the vector size so caches built at another size are not reused.
func (h *HashEmbedder) ModelName() string { return fmt.Sprintf("hash-%d", h.dims) }

// add accumulates a hashed feature. The top bit of the hash picks the sign
// so collisions tend to cancel rather than pile up.
func (h *HashEmbedder) add(v []float64, feature string, weight float64) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
