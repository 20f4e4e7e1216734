// Package pattern classifies recent price action into a coarse bullish/bearish label.
package pattern

import (
	"math/rand/v2"
	"sync"
)

// Label is the coarse direction of recent price action.
type Label string

const (
	Bullish Label = "bullish"
	Bearish Label = "bearish"
)

// Result is the classifier contract consumed by decision fusion.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is any implementation that maps closes to a Result.
type Classifier interface {
	Classify(prices []float64) Result
}

const (
	DefaultWindow  = 20
	confidenceLow  = 0.6
	confidenceHigh = 0.9
)

// TrendClassifier is a placeholder: the label comes from the slope of the
// trailing window and the confidence is drawn uniformly from [0.6, 0.9).
type TrendClassifier struct {
	window int
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewTrendClassifier uses seed for its confidence draws so runs are reproducible.
func NewTrendClassifier(window int, seed uint64) *TrendClassifier {
	if window < 2 {
		window = DefaultWindow
	}
	return &TrendClassifier{window: window, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Classify compares the last close of the trailing window to the first.
// A flat or falling window is bearish.
func (c *TrendClassifier) Classify(prices []float64) Result {
	label := Bearish
	if n := len(prices); n >= 2 {
		first := prices[max(0, n-c.window)]
		if prices[n-1] > first {
			label = Bullish
		}
	}

	c.mu.Lock()
	confidence := confidenceLow + c.rng.Float64()*(confidenceHigh-confidenceLow)
	c.mu.Unlock()
	return Result{Label: label, Confidence: confidence}
}

// Fixed always returns the same result; useful where determinism matters.
type Fixed Result

func (f Fixed) Classify([]float64) Result { return Result(f) }
