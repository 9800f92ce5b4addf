package sentiment

import (
	"sync"
	"testing"
)

func TestScore_EmptyIsZero(t *testing.T) {
	s := NewScorer()
	if got := s.Score(""); got != 0.0 {
		t.Errorf("expected 0.0 for empty text, got %f", got)
	}
}

func TestScore_InRange(t *testing.T) {
	s := NewScorer()
	texts := []string{
		"I love this, it is absolutely wonderful!",
		"This is terrible and I hate it.",
		"The meeting is at 3pm.",
		"t . hello world, contact me at <EMAIL_ADDRESS>",
	}
	for _, text := range texts {
		got := s.Score(text)
		if got < -1.0 || got > 1.0 {
			t.Errorf("score %f out of [-1,1] for %q", got, text)
		}
	}
}

func TestScore_Polarity(t *testing.T) {
	s := NewScorer()
	pos := s.Score("I love this, it is absolutely wonderful!")
	neg := s.Score("This is terrible and I hate it.")
	if pos <= 0 {
		t.Errorf("expected positive score for positive text, got %f", pos)
	}
	if neg >= 0 {
		t.Errorf("expected negative score for negative text, got %f", neg)
	}
}

func TestScore_ConcurrentFirstUse(t *testing.T) {
	// Lazy init must be safe when many workers score at once.
	s := NewScorer()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := s.Score("great stuff"); got < -1.0 || got > 1.0 {
				t.Errorf("score %f out of range", got)
			}
		}()
	}
	wg.Wait()
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.5, 1.0},
		{-1.5, -1.0},
		{0.25, 0.25},
	}
	for _, c := range cases {
		if got := clamp(c.in); got != c.want {
			t.Errorf("clamp(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}
