/*
 * This file is part of Projetor Sync (https://github.com/projetor/projetor-sync).
 * Copyright (C) 2025 Projetor Contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package matcher decides whether recognized speech should move the
// presentation to another slide. It performs no I/O and keeps no state
// between calls.
package matcher

import (
	"strings"

	"github.com/projetor/projetor-sync/internal/logging"
)

// Default tuning values
const (
	DefaultMatchThreshold    = 0.40
	DefaultCurrentSlideBias  = 0.05
	DefaultNextSlideBonus    = 0.15
	DefaultMinWordsForPhrase = 2
)

// Params tunes the jump policy
type Params struct {
	MatchThreshold    float64 // best score must exceed this to jump
	CurrentSlideBias  float64 // margin a challenger must beat the current slide by
	NextSlideBonus    float64 // added to the score of current+1
	MinWordsForPhrase int     // shorter phrases never jump
}

// DefaultParams returns the standard tuning
func DefaultParams() Params {
	return Params{
		MatchThreshold:    DefaultMatchThreshold,
		CurrentSlideBias:  DefaultCurrentSlideBias,
		NextSlideBonus:    DefaultNextSlideBonus,
		MinWordsForPhrase: DefaultMinWordsForPhrase,
	}
}

// Decision describes the outcome of one match attempt
type Decision struct {
	Target       int     // index of the best scoring slide, -1 when nothing was scored
	Jump         bool    // true when the engine should move to Target
	BestScore    float64 // bonus-adjusted score of Target
	CurrentScore float64 // bonus-adjusted score of the current slide
	Phrase       string  // normalized recognized text
}

// Matcher scores recognized phrases against a slide list
type Matcher struct {
	params Params
}

// New creates a matcher with the given tuning
func New(params Params) *Matcher {
	return &Matcher{params: params}
}

// Params returns the matcher tuning
func (m *Matcher) Params() Params {
	return m.params
}

// FindJump returns the slide to jump to, or false when the presentation
// should stay where it is.
func (m *Matcher) FindJump(recognizedText string, slides []string, currentIndex int) (int, bool) {
	d := m.Evaluate(recognizedText, slides, currentIndex)
	if !d.Jump {
		return 0, false
	}
	return d.Target, true
}

// Scores returns the bonus-adjusted score of every slide. It returns nil
// when the recognized text is too short to be scored.
func (m *Matcher) Scores(recognizedText string, slides []string, currentIndex int) []float64 {
	recognizedNorm := Normalize(recognizedText)
	if len(strings.Fields(recognizedNorm)) < m.params.MinWordsForPhrase {
		return nil
	}
	return m.scores(recognizedNorm, slides, currentIndex)
}

func (m *Matcher) scores(recognizedNorm string, slides []string, currentIndex int) []float64 {
	scores := make([]float64, len(slides))
	for i, slide := range slides {
		scores[i] = BestWindowScore(recognizedNorm, Normalize(slide))
	}

	// The bonus is applied before picking the winner and before the bias check.
	if next := currentIndex + 1; next >= 0 && next < len(scores) {
		scores[next] += m.params.NextSlideBonus
	}
	return scores
}

// Evaluate runs the full jump policy and reports the intermediate scores
func (m *Matcher) Evaluate(recognizedText string, slides []string, currentIndex int) Decision {
	recognizedNorm := Normalize(recognizedText)
	decision := Decision{Target: -1, Phrase: recognizedNorm}

	if len(strings.Fields(recognizedNorm)) < m.params.MinWordsForPhrase || len(slides) == 0 {
		return decision
	}

	scores := m.scores(recognizedNorm, slides, currentIndex)

	// First maximum wins ties.
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	decision.Target = best
	decision.BestScore = scores[best]

	if currentIndex >= 0 && currentIndex < len(scores) {
		decision.CurrentScore = scores[currentIndex]
	}

	decision.Jump = best != currentIndex &&
		decision.BestScore > m.params.MatchThreshold &&
		decision.BestScore > decision.CurrentScore+m.params.CurrentSlideBias

	logging.LogMatchDecision(recognizedNorm, best, currentIndex,
		decision.BestScore, decision.CurrentScore, decision.Jump)

	return decision
}

// BestWindowScore compares a normalized phrase with every equal-length word
// window of a normalized slide and returns the best similarity. Slides with
// fewer words than the phrase are compared whole.
func BestWindowScore(recognizedNorm, slideNorm string) float64 {
	if recognizedNorm == "" || slideNorm == "" {
		return 0
	}

	recognizedWords := strings.Fields(recognizedNorm)
	slideWords := strings.Fields(slideNorm)

	if len(slideWords) < len(recognizedWords) {
		return Similarity(recognizedNorm, slideNorm)
	}

	best := 0.0
	width := len(recognizedWords)
	for i := 0; i+width <= len(slideWords); i++ {
		window := strings.Join(slideWords[i:i+width], " ")
		if score := Similarity(recognizedNorm, window); score > best {
			best = score
		}
	}
	return best
}
