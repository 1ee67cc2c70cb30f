package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimension = 256

// Hash is an offline embedder: each lower-cased word is hashed into one bucket of a
// fixed-size vector. Texts sharing words get similar vectors. It needs no network and
// is deterministic, which makes it useful for dry runs and tests.
type Hash struct {
	dimension int
}

func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = defaultHashDimension
	}
	return &Hash{dimension: dimension}
}

func (h *Hash) Embed(_ context.Context, texts []string, role Role) ([]Vector, error) {
	if err := Validate(texts, role); err != nil {
		return nil, err
	}

	vectors := make([]Vector, len(texts))
	for idx, text := range texts {
		vectors[idx] = h.vector(text)
	}
	return vectors, nil
}

func (h *Hash) Model() string {
	return "hash"
}

func (h *Hash) vector(text string) Vector {
	vector := make(Vector, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	for _, word := range words {
		hasher := fnv.New32a()
		hasher.Write([]byte(word))
		vector[hasher.Sum32()%uint32(h.dimension)]++
	}
	return vector
}
