package blog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownInterest = errors.New("unknown interest")

// Vocabulary is the controlled set of interest names, keyed by lowercase.
// An empty vocabulary accepts any name.
type Vocabulary map[string]string

func NewVocabulary(names []string) Vocabulary {
	v := Vocabulary{}
	for _, n := range NormalizeNames(names) {
		v[strings.ToLower(n)] = n
	}
	return v
}

// Canonicalize normalizes names and maps each to its vocabulary spelling.
func (v Vocabulary) Canonicalize(names []string) ([]string, error) {
	out := NormalizeNames(names)
	if len(v) == 0 {
		return out, nil
	}
	for i, n := range out {
		canonical, ok := v[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownInterest, n)
		}
		out[i] = canonical
	}
	return out, nil
}
