package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"
)

var (
	// ErrNoModel is returned when the weights file is missing or unusable
	ErrNoModel = errors.New("model weights unavailable")

	// ErrUnscorable is returned when an input yields no recognizable tokens
	ErrUnscorable = errors.New("no scorable tokens in text")
)

// modelFile is the on-disk shape of the linear model weights.
type modelFile struct {
	Version string             `json:"version"`
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

// Linear is the richer primary scorer: a logistic bag-of-words model
// loaded from a JSON weights file. Loading can fail (missing or corrupt
// file); callers are expected to fall back to the Heuristic in that case.
type Linear struct {
	version string
	bias    float64
	weights map[string]float64
}

// NewLinear loads a linear model from the given weights file.
func NewLinear(path string) (*Linear, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrNoModel)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoModel, err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: invalid weights file: %v", ErrNoModel, err)
	}
	if len(mf.Weights) == 0 {
		return nil, fmt.Errorf("%w: weights file has no weights", ErrNoModel)
	}

	return &Linear{
		version: mf.Version,
		bias:    mf.Bias,
		weights: mf.Weights,
	}, nil
}

// Name returns the classifier variant name.
func (l *Linear) Name() string {
	return "linear-" + l.version
}

// Score computes sigmoid(bias + sum of token weights) over the lowercased
// token bag. An input with no tokens at all is unscorable; that single
// item degrades to the fallback scorer rather than failing its batch.
func (l *Linear) Score(text string) (float64, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, ErrUnscorable
	}

	z := l.bias
	for _, tok := range tokens {
		z += l.weights[tok]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
