package nn

import (
	"fmt"
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Embedding maps integer token ids to dense vectors via table lookup.
//
// The table has shape [num_embeddings, embedding_dim]; looking up indices of
// shape [batch, seq] produces [batch, seq, embedding_dim].
type Embedding[B tensor.Backend] struct {
	NumEmbeddings int
	EmbeddingDim  int

	weight *Parameter[B]
}

// NewEmbedding creates an embedding table initialized from N(0, 0.02).
func NewEmbedding[B tensor.Backend](backend B, numEmbeddings, embeddingDim int, rng *rand.Rand) (*Embedding[B], error) {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		return nil, fmt.Errorf("nn: embedding dimensions must be positive, got num=%d dim=%d", numEmbeddings, embeddingDim)
	}
	if rng == nil {
		return nil, fmt.Errorf("nn: embedding initialization requires a random source")
	}
	weight := NormalInit(backend, tensor.Shape{numEmbeddings, embeddingDim}, 0, 0.02, rng)
	return &Embedding[B]{
		NumEmbeddings: numEmbeddings,
		EmbeddingDim:  embeddingDim,
		weight:        NewParameter("embedding.weight", weight),
	}, nil
}

// Lookup gathers embedding vectors for the given indices.
func (e *Embedding[B]) Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return tensor.Embedding(e.weight.Data, indices)
}

// Weight returns the embedding table parameter.
func (e *Embedding[B]) Weight() *Parameter[B] { return e.weight }

// Parameters returns the embedding table.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.weight}
}
