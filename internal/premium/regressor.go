package premium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Regressor predicts a raw annual premium from a scaled feature vector.
type Regressor interface {
	Predict(ctx context.Context, v FeatureVector) (float64, error)
}

// Regressor kinds found in exported model artifacts.
const (
	KindLinear           = "linear"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// ErrUnknownRegressor is returned for an artifact of an unsupported kind.
var ErrUnknownRegressor = errors.New("unsupported regressor kind")

// featureOrder maps model input positions onto FeatureVector slots.
type featureOrder []int

func newFeatureOrder(names []string) (featureOrder, error) {
	if len(names) == 0 {
		order := make(featureOrder, NumFeatures)
		for i := range order {
			order[i] = i
		}
		return order, nil
	}
	order := make(featureOrder, len(names))
	for i, name := range names {
		idx, ok := ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("model expects unknown feature %q", name)
		}
		order[i] = idx
	}
	return order, nil
}

func (o featureOrder) row(v FeatureVector) []float64 {
	row := make([]float64, len(o))
	for i, idx := range o {
		row[i] = v[idx]
	}
	return row
}

// LinearModel is an exported linear regression.
type LinearModel struct {
	order        featureOrder
	coefficients []float64
	intercept    float64
}

// NewLinearModel creates a linear model over the named features; nil
// features means the full FeatureVector order.
func NewLinearModel(features []string, coefficients []float64, intercept float64) (*LinearModel, error) {
	order, err := newFeatureOrder(features)
	if err != nil {
		return nil, err
	}
	if len(coefficients) != len(order) {
		return nil, fmt.Errorf("linear model has %d coefficients for %d features", len(coefficients), len(order))
	}
	return &LinearModel{order: order, coefficients: coefficients, intercept: intercept}, nil
}

// Predict implements Regressor.
func (m *LinearModel) Predict(ctx context.Context, v FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	y := m.intercept
	for i, x := range m.order.row(v) {
		y += m.coefficients[i] * x
	}
	return y, nil
}

// TreeNode is one node of an exported decision tree. Samples with
// x[Feature] < Threshold go Left.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// eval walks from the root to a leaf. Children always follow their parent,
// so the walk terminates.
func (t Tree) eval(row []float64) float64 {
	n := t.Nodes[0]
	for !n.Leaf {
		if row[n.Feature] < n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// TreeEnsemble is an exported random forest (mean of trees) or gradient
// boosted model (base score plus sum of trees).
type TreeEnsemble struct {
	kind      string
	order     featureOrder
	baseScore float64
	trees     []Tree
}

// NewTreeEnsemble creates a tree ensemble of the given kind.
func NewTreeEnsemble(kind string, features []string, baseScore float64, trees []Tree) (*TreeEnsemble, error) {
	if kind != KindRandomForest && kind != KindGradientBoosting {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegressor, kind)
	}
	order, err := newFeatureOrder(features)
	if err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, errors.New("tree ensemble has no trees")
	}
	for i, t := range trees {
		if err := t.validate(len(order)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &TreeEnsemble{kind: kind, order: order, baseScore: baseScore, trees: trees}, nil
}

// Kind returns the ensemble kind.
func (e *TreeEnsemble) Kind() string { return e.kind }

// Predict implements Regressor.
func (e *TreeEnsemble) Predict(ctx context.Context, v FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	row := e.order.row(v)
	var sum float64
	for _, t := range e.trees {
		sum += t.eval(row)
	}
	if e.kind == KindRandomForest {
		return sum / float64(len(e.trees)), nil
	}
	return e.baseScore + sum, nil
}

type regressorJSON struct {
	Kind         string    `json:"kind"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	BaseScore    float64   `json:"base_score"`
	Trees        []Tree    `json:"trees"`
}

// DecodeRegressor parses an exported regressor artifact.
func DecodeRegressor(data []byte) (Regressor, error) {
	var raw regressorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode regressor: %w", err)
	}

	switch raw.Kind {
	case KindLinear:
		return NewLinearModel(raw.Features, raw.Coefficients, raw.Intercept)
	case KindRandomForest, KindGradientBoosting:
		return NewTreeEnsemble(raw.Kind, raw.Features, raw.BaseScore, raw.Trees)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegressor, raw.Kind)
	}
}
