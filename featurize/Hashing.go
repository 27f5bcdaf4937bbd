// Package featurize implements functionality for turning text into
// fixed-width feature vectors that can be fed to neural networks
package featurize

import (
	"fmt"
	"strings"

	"github.com/neurlang/classifier/hash"
	"gonum.org/v1/gonum/floats"
)

// Featurizer converts text into feature vectors
type Featurizer interface {
	// Features returns the features of each text concatenated in row
	// major order, len(texts) * Dims() values in total
	Features(texts []string) []float64

	// Dims returns the number of features of a single text
	Dims() int
}

// Hashing is a Featurizer that uses the hashing trick. Each lower-cased
// word unigram and bigram of a text is hashed into one of Dims buckets
// and the bucket counts are normalized to unit length. The empty
// string, or a string with only whitespace, has the zero vector as its
// features.
type Hashing struct {
	dims int
	seed uint32
}

// NewHashing returns a new Hashing Featurizer with dims buckets. Two
// Hashing Featurizers with different seeds hash tokens to different
// buckets.
func NewHashing(dims int, seed uint32) (*Hashing, error) {
	if dims < 1 {
		return nil, fmt.Errorf("newHashing: dims must be positive")
	}

	return &Hashing{dims: dims, seed: seed}, nil
}

// Dims returns the number of features of a single text
func (h *Hashing) Dims() int {
	return h.dims
}

// Features returns the features of each text concatenated in row
// major order
func (h *Hashing) Features(texts []string) []float64 {
	out := make([]float64, len(texts)*h.dims)
	for i, text := range texts {
		h.featuresInto(out[i*h.dims:(i+1)*h.dims], text)
	}
	return out
}

// featuresInto writes the features of a single text into row
func (h *Hashing) featuresInto(row []float64, text string) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return
	}

	for i, token := range tokens {
		row[h.bucket(token)]++
		if i > 0 {
			row[h.bucket(tokens[i-1]+" "+token)]++
		}
	}

	norm := floats.Norm(row, 2)
	floats.Scale(1/norm, row)
}

// bucket returns the bucket that a token is hashed to
func (h *Hashing) bucket(token string) int {
	key := hash.StringHash(h.seed, token)
	return int(hash.Hash(key, h.seed, uint32(h.dims)))
}
