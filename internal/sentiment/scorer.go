// Package sentiment scores free text on a [-1, 1] polarity scale using a
// VADER lexicon model.
package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"
)

// Scorer computes compound polarity scores. The backing analyzer is
// expensive to build, so it is constructed at most once, on first use.
// Construct one Scorer at process start and share it by reference.
type Scorer struct {
	once     sync.Once
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewScorer returns a Scorer. The lexicon is not loaded until the first
// Score call.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the compound polarity of text in [-1, 1]. Empty text scores
// exactly 0. Any analyzer failure degrades to a neutral 0 rather than
// propagating.
func (s *Scorer) Score(text string) (score float64) {
	if text == "" {
		return 0.0
	}

	defer func() {
		if recover() != nil {
			score = 0.0
		}
	}()

	s.once.Do(func() {
		s.analyzer = govader.NewSentimentIntensityAnalyzer()
	})
	if s.analyzer == nil {
		return 0.0
	}

	return clamp(s.analyzer.PolarityScores(text).Compound)
}

func clamp(v float64) float64 {
	switch {
	case v > 1.0:
		return 1.0
	case v < -1.0:
		return -1.0
	}
	return v
}
