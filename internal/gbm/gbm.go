// Package gbm implements a gradient-boosted decision tree binary classifier
// with logistic loss and second-order exact greedy splits.
package gbm

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyTraining = errors.New("training set is empty")
	ErrShape         = errors.New("feature matrix and labels do not match")
)

// Params controls boosting. Field semantics follow XGBoost.
type Params struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	BaseScore      float64 `json:"base_score"`
}

// DefaultParams returns the booster defaults with 1000 estimators.
func DefaultParams() Params {
	return Params{
		NEstimators:    1000,
		LearningRate:   0.3,
		MaxDepth:       6,
		MinChildWeight: 1,
		Lambda:         1,
		Gamma:          0,
		BaseScore:      0.5,
	}
}

func (p Params) validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be at least 1")
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive")
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be at least 1")
	case p.MinChildWeight < 0, p.Lambda < 0, p.Gamma < 0:
		return fmt.Errorf("min_child_weight, lambda and gamma must not be negative")
	case p.BaseScore <= 0 || p.BaseScore >= 1:
		return fmt.Errorf("base_score must be in (0, 1)")
	}
	return nil
}

// Node is a tree node. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// Tree is a regression tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Model is a fitted ensemble.
type Model struct {
	Params     Params   `json:"params"`
	Features   []string `json:"features,omitempty"`
	NumFeature int      `json:"num_feature"`
	BaseMargin float64  `json:"base_margin"`
	Trees      []Tree   `json:"trees"`
}

// Fit trains a classifier on x with 0/1 labels y.
func Fit(x [][]float64, y []int, params Params) (*Model, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, ErrEmptyTraining
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShape, len(x), len(y))
	}
	nf := len(x[0])
	if nf == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrShape)
	}
	for i, row := range x {
		if len(row) != nf {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), nf)
		}
		if y[i] != 0 && y[i] != 1 {
			return nil, fmt.Errorf("label %d at row %d is not 0 or 1", y[i], i)
		}
	}

	m := &Model{
		Params:     params,
		NumFeature: nf,
		BaseMargin: logit(params.BaseScore),
	}

	n := len(x)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.BaseMargin
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < params.NEstimators; round++ {
		for i := range x {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
		b := &builder{x: x, grad: grad, hess: hess, params: params, nf: nf}
		b.grow(append([]int(nil), all...), 0)
		tree := Tree{Nodes: b.nodes}
		for i := range x {
			margin[i] += tree.predict(x[i])
		}
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

type builder struct {
	x      [][]float64
	grad   []float64
	hess   []float64
	params Params
	nf     int
	nodes  []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	pos       int
}

// grow builds the subtree over idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	var g, h float64
	for _, i := range idx {
		g += b.grad[i]
		h += b.hess[i]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if depth < b.params.MaxDepth && len(idx) > 1 {
		if best, ok := b.bestSplit(idx, g, h); ok {
			b.sortBy(idx, best.feature)
			left := append([]int(nil), idx[:best.pos]...)
			right := append([]int(nil), idx[best.pos:]...)
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[id] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
			return id
		}
	}

	b.nodes[id].Value = -g / (h + b.params.Lambda) * b.params.LearningRate
	return id
}

func (b *builder) bestSplit(idx []int, g, h float64) (split, bool) {
	lambda := b.params.Lambda
	parent := g * g / (h + lambda)
	best := split{gain: 0}
	found := false

	for f := 0; f < b.nf; f++ {
		b.sortBy(idx, f)
		var gl, hl float64
		for k := 0; k < len(idx)-1; k++ {
			i := idx[k]
			gl += b.grad[i]
			hl += b.hess[i]
			cur, next := b.x[i][f], b.x[idx[k+1]][f]
			if cur == next {
				continue
			}
			hr := h - hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}
			gr := g - gl
			gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-parent) - b.params.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: cur + (next-cur)/2, gain: gain, pos: k + 1}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) sortBy(idx []int, f int) {
	sort.SliceStable(idx, func(i, j int) bool {
		return b.x[idx[i]][f] < b.x[idx[j]][f]
	})
}

// Margin returns the raw log-odds for one row.
func (m *Model) Margin(row []float64) float64 {
	s := m.BaseMargin
	for i := range m.Trees {
		s += m.Trees[i].predict(row)
	}
	return s
}

// PredictProba returns P(label == 1) for each row.
func (m *Model) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.NumFeature {
			return nil, fmt.Errorf("%w: row %d has %d columns, model expects %d", ErrShape, i, len(row), m.NumFeature)
		}
		out[i] = sigmoid(m.Margin(row))
	}
	return out, nil
}

// Predict returns 1 where P(label == 1) > 0.5, else 0.
func (m *Model) Predict(x [][]float64) ([]int, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// Accuracy returns the share of predictions equal to the labels.
func Accuracy(pred, y []int) float64 {
	if len(pred) == 0 || len(pred) != len(y) {
		return 0
	}
	hits := 0
	for i := range pred {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
