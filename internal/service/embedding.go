package service

import (
	"strings"
	"unicode"

	"github.com/pgvector/pgvector-go"
)

// GenerateEmbedding produces a small deterministic vector for recipe search
// ordering. It is a stand-in for a hosted embedding model: cheap, stable
// across runs, and good enough to keep the pgvector query path exercised.
func GenerateEmbedding(text string) pgvector.Vector {
	lower := strings.ToLower(text)

	var letters, vowels, consonants float32
	for _, r := range lower {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		default:
			consonants++
		}
	}
	if letters == 0 {
		return pgvector.NewVector([]float32{0, 0, 0})
	}
	return pgvector.NewVector([]float32{
		letters / 100,
		vowels / letters,
		consonants / letters,
	})
}
