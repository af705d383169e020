package commonjs

// Shape is the export shape of a CommonJS module as far as it can be read
// from source text.
type Shape uint8

const (
	// ShapeNone means the module never writes to module.exports or exports.
	ShapeNone Shape = iota
	// ShapeNamedOnly means only statically named keys are written.
	ShapeNamedOnly
	// ShapeDefaultOnly means module.exports is reassigned and no names are
	// known.
	ShapeDefaultOnly
	// ShapeMixed means module.exports is reassigned and named keys are known.
	ShapeMixed
	// ShapeDynamic means the export object cannot be analyzed.
	ShapeDynamic
)

func (s Shape) String() string {
	switch s {
	case ShapeNamedOnly:
		return "named-only"
	case ShapeDefaultOnly:
		return "default-only"
	case ShapeMixed:
		return "mixed"
	case ShapeDynamic:
		return "dynamic"
	default:
		return "none"
	}
}

// Strategy selects how a CommonJS module is emitted.
type Strategy uint8

const (
	// StrategyNone leaves the module body alone apart from call-site rewrites.
	StrategyNone Strategy = iota
	// StrategyStatic hoists requires into imports and runs the body eagerly.
	StrategyStatic
	// StrategyWrapped defers the body into a guarded factory.
	StrategyWrapped
)

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyWrapped:
		return "wrapped"
	default:
		return "none"
	}
}

// Reasons a module is emitted with the wrapped strategy.
const (
	ReasonNestedExports  = "nested-exports"
	ReasonTopLevelReturn = "top-level-return"
	ReasonTopLevelThis   = "top-level-this"
	ReasonCycle          = "cycle"
	ReasonDynamicTarget  = "dynamic-require-target"
	ReasonConditional    = "conditional-require"
	ReasonStrictRequires = "strict-requires"
)
