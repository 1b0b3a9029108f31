package config

import "git.home.luguber.info/inful/catobuild/internal/foundation/normalization"

// Shape selects how the pipeline is laid out.
type Shape string

const (
	// ShapeSplit emits IR, transforms it with the optimizer, lowers and links.
	ShapeSplit Shape = "split"
	// ShapeFused loads the pass into the front end and compiles in one step.
	ShapeFused Shape = "fused"
)

var shapes = normalization.NewNormalizer(map[string]Shape{
	string(ShapeSplit): ShapeSplit,
	string(ShapeFused): ShapeFused,
}, "")

// NormalizeShape returns the canonical shape for s, or "" when s is not a
// known shape.
func NormalizeShape(s string) Shape {
	return shapes.Normalize(s)
}

// AssembleMode selects how transformed IR is lowered in the split shape.
type AssembleMode string

const (
	// AssembleObject compiles the transformed IR to a native object file.
	AssembleObject AssembleMode = "object"
	// AssembleBitcode converts the transformed IR to bitcode and leaves code
	// generation to the link step.
	AssembleBitcode AssembleMode = "bitcode"
)

var assembleModes = normalization.NewNormalizer(map[string]AssembleMode{
	string(AssembleObject):  AssembleObject,
	string(AssembleBitcode): AssembleBitcode,
}, "")

// NormalizeAssembleMode returns the canonical mode for s, or "" when s is
// not a known mode.
func NormalizeAssembleMode(s string) AssembleMode {
	return assembleModes.Normalize(s)
}
