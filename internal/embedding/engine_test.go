package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeProducesConfiguredDimensions(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	vec := e.Encode(context.Background(), "Project Alpha is in progress")
	assert.Len(t, vec, DefaultDimensions)
}

func TestEncodeEmptyTextDegradesToZeroVector(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	vec := e.Encode(context.Background(), "")
	for _, x := range vec {
		assert.Equal(t, float32(0), x)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	a := e.Encode(context.Background(), "Project Alpha status update")
	b := e.Encode(context.Background(), "Project Alpha status update")
	assert.Equal(t, a, b)
}

func TestSimilarityRoundTripNearOne(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	v := e.Encode(context.Background(), "API Migration project update")
	sim := Similarity(v, v)
	assert.InDelta(t, 1.0, sim, 1e-5)
}

func TestSimilarityDistinctTextsLowerThanIdentical(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	a := e.Encode(context.Background(), "Project Alpha is blocked on vendor")
	b := e.Encode(context.Background(), "completely unrelated billing invoice text")
	assert.Less(t, Similarity(a, b), Similarity(a, a))
}

func TestEncodeBatchAlignsRowsWithInputs(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	texts := []string{"first text", "second text", "third text"}
	vecs := e.EncodeBatch(context.Background(), texts, 2)
	assert.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, DefaultDimensions)
	}
	single := e.Encode(context.Background(), texts[1])
	assert.Equal(t, single, vecs[1])
}

func TestBatchSimilarityMatchesPairwiseDotProduct(t *testing.T) {
	e := New(DefaultDimensions, DefaultMaxLength, nil)
	q := e.Encode(context.Background(), "Project Alpha")
	m := e.EncodeBatch(context.Background(), []string{"Project Alpha", "Project Beta"}, 2)
	sims := BatchSimilarity(q, m)
	assert.InDelta(t, Similarity(q, m[0]), sims[0], 1e-9)
	assert.InDelta(t, Similarity(q, m[1]), sims[1], 1e-9)
}
