// Package vision classifies vehicle-damage photos with a ResNet-50 model
// whose frozen weights are loaded from a safetensors file.
package vision

import "fmt"

// Label is a vehicle-damage category.
type Label string

// Damage labels in training index order.
const (
	FrontBreakage Label = "Front Breakage"
	FrontCrushed  Label = "Front Crushed"
	FrontNormal   Label = "Front Normal"
	RearBreakage  Label = "Rear Breakage"
	RearCrushed   Label = "Rear Crushed"
	RearNormal    Label = "Rear Normal"
)

// NumLabels is the width of the classification head.
const NumLabels = 6

// Labels maps head output indexes to labels.
var Labels = [NumLabels]Label{
	FrontBreakage,
	FrontCrushed,
	FrontNormal,
	RearBreakage,
	RearCrushed,
	RearNormal,
}

// LabelAt returns the label for a head output index.
func LabelAt(i int) (Label, error) {
	if i < 0 || i >= NumLabels {
		return "", fmt.Errorf("label index %d out of range", i)
	}
	return Labels[i], nil
}
