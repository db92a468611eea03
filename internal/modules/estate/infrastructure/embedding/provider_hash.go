package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

// HashEmbedder 确定性的本地 embedder：词 + 相邻词对哈希到固定维度后归一化。
// 相同输入总是得到相同向量，用于离线开发与测试。
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result[i] = h.embed(t)
	}
	return result, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.Dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func (h *HashEmbedder) add(vec []float64, tok string, w float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(tok))
	sum := f.Sum64()
	idx := int(sum % uint64(h.Dim))
	if sum&(1<<63) != 0 {
		w = -w
	}
	vec[idx] += w
}

var _ embedding.Embedder = (*HashEmbedder)(nil)
