package premium

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Transform is a fitted column scaling transform.
type Transform interface {
	// Apply scales one row. len(values) must equal Width.
	Apply(values []float64) ([]float64, error)
	// Width is the number of columns the transform was fitted on.
	Width() int
}

// MinMaxTransform mirrors a fitted MinMaxScaler: x*Scale + Min.
type MinMaxTransform struct {
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

// Width implements Transform.
func (t *MinMaxTransform) Width() int { return len(t.Scale) }

// Apply implements Transform.
func (t *MinMaxTransform) Apply(values []float64) ([]float64, error) {
	if len(values) != len(t.Scale) || len(t.Min) != len(t.Scale) {
		return nil, fmt.Errorf("minmax transform fitted on %d columns, got %d", len(t.Scale), len(values))
	}
	out := make([]float64, len(values))
	for i, x := range values {
		out[i] = x*t.Scale[i] + t.Min[i]
	}
	return out, nil
}

// StandardTransform mirrors a fitted StandardScaler: (x-Mean)/Scale.
type StandardTransform struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Width implements Transform.
func (t *StandardTransform) Width() int { return len(t.Scale) }

// Apply implements Transform.
func (t *StandardTransform) Apply(values []float64) ([]float64, error) {
	if len(values) != len(t.Scale) || len(t.Mean) != len(t.Scale) {
		return nil, fmt.Errorf("standard transform fitted on %d columns, got %d", len(t.Scale), len(values))
	}
	out := make([]float64, len(values))
	for i, x := range values {
		if t.Scale[i] == 0 {
			return nil, fmt.Errorf("standard transform has zero scale for column %d", i)
		}
		out[i] = (x - t.Mean[i]) / t.Scale[i]
	}
	return out, nil
}

// ScalerShape tells which historical serialization a scaler came from.
type ScalerShape string

const (
	// ScalerDict wraps an explicit column list around the transform.
	ScalerDict ScalerShape = "dict"
	// ScalerDirect is a bare transform applied to DirectScalerColumns.
	ScalerDirect ScalerShape = "direct"
)

// DirectScalerColumns are scaled when the artifact carries no column list.
var DirectScalerColumns = []string{ColAge, ColIncomeLakhs, ColGeneticalRisk, ColDependants}

// Scaler is a loaded scaler artifact of either shape.
type Scaler struct {
	Shape     ScalerShape
	Columns   []string
	Transform Transform
}

// NewDictScaler creates a scaler that transforms only the named columns.
func NewDictScaler(columns []string, t Transform) *Scaler {
	return &Scaler{Shape: ScalerDict, Columns: columns, Transform: t}
}

// NewDirectScaler creates a scaler for a bare transform.
func NewDirectScaler(t Transform) *Scaler {
	return &Scaler{Shape: ScalerDirect, Columns: DirectScalerColumns, Transform: t}
}

// ScalingWarning records why a vector was passed through unscaled.
type ScalingWarning struct {
	Reason string
	Err    error
}

func (w *ScalingWarning) String() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %v", w.Reason, w.Err)
	}
	return w.Reason
}

// ScaleResult always carries a usable vector; Warning is set when scaling
// was skipped and Vector is the unscaled input.
type ScaleResult struct {
	Vector  FeatureVector
	Warning *ScalingWarning
}

// Degraded reports whether scaling was skipped.
func (r ScaleResult) Degraded() bool {
	return r.Warning != nil
}

// Scale applies the scaler to v. It never fails: any problem yields the
// unscaled vector and a warning.
func Scale(v FeatureVector, s *Scaler) ScaleResult {
	if s == nil || s.Transform == nil {
		return ScaleResult{Vector: v, Warning: &ScalingWarning{Reason: "scaler unavailable"}}
	}

	columns := s.Columns
	if s.Shape == ScalerDirect {
		columns = presentColumns(DirectScalerColumns)
	}
	if len(columns) == 0 {
		return ScaleResult{Vector: v, Warning: &ScalingWarning{Reason: "scaler has no columns"}}
	}

	// income_level is a transient column some historical scalers were
	// fitted with; it is synthesized for the transform and then dropped.
	values := make([]float64, len(columns))
	for i, col := range columns {
		if col == ColIncomeLevel {
			values[i] = IncomeLevel(v[idxIncomeLakhs])
			continue
		}
		idx, ok := ColumnIndex(col)
		if !ok {
			return ScaleResult{Vector: v, Warning: &ScalingWarning{
				Reason: "scaling failed",
				Err:    fmt.Errorf("unknown column %q", col),
			}}
		}
		values[i] = v[idx]
	}

	scaled, err := s.Transform.Apply(values)
	if err != nil {
		return ScaleResult{Vector: v, Warning: &ScalingWarning{Reason: "scaling failed", Err: err}}
	}

	out := v
	for i, col := range columns {
		if idx, ok := ColumnIndex(col); ok {
			out[idx] = scaled[i]
		}
	}
	return ScaleResult{Vector: out}
}

func presentColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := ColumnIndex(c); ok {
			out = append(out, c)
		}
	}
	return out
}

// ErrUnknownScaler is returned when a scaler artifact matches neither shape.
var ErrUnknownScaler = errors.New("unrecognized scaler structure")

type transformJSON struct {
	Kind  string    `json:"kind"`
	Min   []float64 `json:"min"`
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type scalerJSON struct {
	transformJSON
	ColsToScale []string        `json:"cols_to_scale"`
	Scaler      json.RawMessage `json:"scaler"`
}

// DecodeScaler parses a scaler artifact, resolving its shape up front.
func DecodeScaler(data []byte) (*Scaler, error) {
	var raw scalerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}

	if len(raw.ColsToScale) > 0 && len(raw.Scaler) > 0 {
		var inner transformJSON
		if err := json.Unmarshal(raw.Scaler, &inner); err != nil {
			return nil, fmt.Errorf("decode scaler transform: %w", err)
		}
		t, err := buildTransform(inner)
		if err != nil {
			return nil, err
		}
		if t.Width() != len(raw.ColsToScale) {
			return nil, fmt.Errorf("scaler lists %d columns but transform has width %d", len(raw.ColsToScale), t.Width())
		}
		return NewDictScaler(raw.ColsToScale, t), nil
	}

	if raw.Kind != "" {
		t, err := buildTransform(raw.transformJSON)
		if err != nil {
			return nil, err
		}
		return NewDirectScaler(t), nil
	}

	return nil, ErrUnknownScaler
}

func buildTransform(raw transformJSON) (Transform, error) {
	switch raw.Kind {
	case "minmax":
		if len(raw.Min) != len(raw.Scale) {
			return nil, fmt.Errorf("minmax transform: %d mins for %d scales", len(raw.Min), len(raw.Scale))
		}
		return &MinMaxTransform{Min: raw.Min, Scale: raw.Scale}, nil
	case "standard":
		if len(raw.Mean) != len(raw.Scale) {
			return nil, fmt.Errorf("standard transform: %d means for %d scales", len(raw.Mean), len(raw.Scale))
		}
		return &StandardTransform{Mean: raw.Mean, Scale: raw.Scale}, nil
	default:
		return nil, fmt.Errorf("%w: transform kind %q", ErrUnknownScaler, raw.Kind)
	}
}
