package classifier

import "github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"

// Classifier maps text to a confidence score in [0,1].
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Score returns the ragebait confidence for the given text
	Score(text string) (float64, error)

	// Name returns the classifier variant name
	Name() string
}

// Label applies the label policy: score at or above the threshold means
// ragebait, everything else is safe.
func Label(score, threshold float64) string {
	if score >= threshold {
		return pipeline.LabelRagebait
	}
	return pipeline.LabelSafe
}
