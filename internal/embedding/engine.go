// Package embedding provides a deterministic, dependency-free 384-dimensional
// text encoder. There is no ONNX runtime or embedding server in scope for
// this module, so the engine generalizes the hash-based fallback strategy
// into the primary encoder: mean pooling over per-token hash vectors,
// weighted by a position-derived attention mask, L2-normalized.
package embedding

import (
	"context"
	"log/slog"
	"math"
	"strings"
)

// DefaultDimensions is the vector width mandated by the configuration
// contract (embedding_dim).
const DefaultDimensions = 384

// DefaultMaxLength bounds the number of tokens considered per text, matching
// the configuration contract's embedding_max_length default.
const DefaultMaxLength = 256

// Engine encodes short text into fixed-width vectors. It is stateless after
// construction and safe to share across goroutines.
type Engine struct {
	dimensions int
	maxLength  int
	logger     *slog.Logger
}

// New constructs an Engine with the given vector width and per-text token
// cap. A nil logger installs slog's default handler.
func New(dimensions, maxLength int, logger *slog.Logger) *Engine {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{dimensions: dimensions, maxLength: maxLength, logger: logger}
}

// Dimensions reports the configured vector width.
func (e *Engine) Dimensions() int {
	return e.dimensions
}

// Encode returns an L2-normalized embedding for a single text. On any
// internal failure it degrades safely to a zero vector rather than erroring,
// per the embedding engine's contract.
func (e *Engine) Encode(ctx context.Context, text string) []float32 {
	vecs := e.EncodeBatch(ctx, []string{text}, 1)
	if len(vecs) == 0 {
		return make([]float32, e.dimensions)
	}
	return vecs[0]
}

// EncodeBatch encodes many texts, processing batchSize at a time. Rows align
// with the input slice; a failure on any one text degrades only that row.
func (e *Engine) EncodeBatch(ctx context.Context, texts []string, batchSize int) [][]float32 {
	if batchSize <= 0 {
		batchSize = 32
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for i := start; i < end; i++ {
			select {
			case <-ctx.Done():
				out[i] = make([]float32, e.dimensions)
				continue
			default:
			}
			out[i] = e.encodeOne(texts[i])
		}
	}
	return out
}

func (e *Engine) encodeOne(text string) []float32 {
	text = strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(text)
	if len(words) > e.maxLength {
		words = words[:e.maxLength]
	}
	if len(words) == 0 {
		return make([]float32, e.dimensions)
	}

	embedding := make([]float32, e.dimensions)
	var maskTotal float32
	for i, word := range words {
		hash := tokenHash(word)
		// Attention weight decays with position, same idiom as the earlier
		// position-weighted prototype this engine generalizes.
		weight := float32(1.0) / float32(1+i)
		maskTotal += weight
		idx := hash % uint32(e.dimensions)
		embedding[idx] += weight
	}

	if maskTotal > 0 {
		for i := range embedding {
			embedding[i] /= maskTotal
		}
	}

	return normalize(embedding)
}

func tokenHash(s string) uint32 {
	hash := uint32(0)
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}
	return hash
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Similarity returns the cosine similarity of two vectors, normalizing each
// internally so callers may pass raw vectors.
func Similarity(a, b []float32) float64 {
	na, nb := normalize(a), normalize(b)
	n := len(na)
	if len(nb) < n {
		n = len(nb)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(na[i]) * float64(nb[i])
	}
	return dot
}

// BatchSimilarity returns the dot product of a query vector against every row
// of m, assuming all vectors are already normalized (as Encode produces).
func BatchSimilarity(query []float32, m [][]float32) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var dot float64
		n := len(query)
		if len(row) < n {
			n = len(row)
		}
		for j := 0; j < n; j++ {
			dot += float64(query[j]) * float64(row[j])
		}
		out[i] = dot
	}
	return out
}
