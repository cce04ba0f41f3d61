// Package errors provides the centralized error-code taxonomy for the
// simulation core: a phase-prefixed, numbered code convention (PAR001,
// DIM002, ...) so every diagnostic is both human-readable and
// machine-matchable.
package errors

// Error code constants, organized by the taxonomy in spec.md §7.
const (
	// ============================================================
	// Parse errors (PAR###) — from the equation parser (C2)
	// ============================================================
	PAR001 = "PAR001" // InvalidToken
	PAR002 = "PAR002" // UnrecognizedEof
	PAR003 = "PAR003" // UnrecognizedToken
	PAR004 = "PAR004" // ExtraToken
	PAR005 = "PAR005" // EmptyEquation
	PAR006 = "PAR006" // ExpectedNumber
	PAR007 = "PAR007" // UnknownBuiltin
	PAR008 = "PAR008" // BadBuiltinArgs

	// ============================================================
	// Reference errors (REF###)
	// ============================================================
	REF001 = "REF001" // DoesNotExist
	REF002 = "REF002" // BadModuleInputSrc
	REF003 = "REF003" // BadModuleInputDst
	REF004 = "REF004" // DuplicateVariable
	REF005 = "REF005" // BadModelName
	REF006 = "REF006" // BadDimensionName

	// ============================================================
	// Dimension errors (DIM###)
	// ============================================================
	DIM001 = "DIM001" // MismatchedDimensions
	DIM002 = "DIM002" // ArrayReferenceNeedsExplicitSubscripts
	DIM003 = "DIM003" // ArraysNotImplemented
	DIM004 = "DIM004" // MultiDimensionalArraysNotImplemented

	// ============================================================
	// Graph errors (GPH###)
	// ============================================================
	GPH001 = "GPH001" // CircularDependency
	GPH002 = "GPH002" // UnknownDependency

	// ============================================================
	// Unit errors (UNIT###) — warnings by default
	// ============================================================
	UNIT001 = "UNIT001" // UnitDefinitionErrors

	// ============================================================
	// Aggregate errors (SIM###)
	// ============================================================
	SIM001 = "SIM001" // VariablesHaveErrors
	SIM002 = "SIM002" // NotSimulatable
	SIM003 = "SIM003" // BadSimSpecs
	SIM004 = "SIM004" // StatefulOrderCollapsed
)

// ErrorInfo carries the static description of an error code, independent
// of any particular occurrence.
type ErrorInfo struct {
	Code        string
	Phase       string
	Category    string
	Description string
	Warning     bool // true if this code is non-fatal by default
}

// Registry maps every defined code to its static description. Used by
// the CLI and REPL to render a longer explanation alongside a Report.
var Registry = map[string]ErrorInfo{
	PAR001: {PAR001, "parse", "syntax", "invalid token in equation", false},
	PAR002: {PAR002, "parse", "syntax", "unexpected end of equation", false},
	PAR003: {PAR003, "parse", "syntax", "unrecognized token", false},
	PAR004: {PAR004, "parse", "syntax", "extra trailing token", false},
	PAR005: {PAR005, "parse", "syntax", "empty equation", false},
	PAR006: {PAR006, "parse", "syntax", "expected a numeric literal", false},
	PAR007: {PAR007, "parse", "syntax", "unknown builtin function", false},
	PAR008: {PAR008, "parse", "syntax", "wrong number of arguments to builtin", false},

	REF001: {REF001, "analyze", "reference", "identifier does not exist", false},
	REF002: {REF002, "analyze", "reference", "module binding destination is not a declared input", false},
	REF003: {REF003, "analyze", "reference", "declared module input is not bound", false},
	REF004: {REF004, "analyze", "reference", "duplicate variable name", false},
	REF005: {REF005, "analyze", "reference", "unknown model name", false},
	REF006: {REF006, "analyze", "reference", "unknown dimension name", false},

	DIM001: {DIM001, "analyze", "dimension", "operand dimensions are not broadcast-compatible", false},
	DIM002: {DIM002, "analyze", "dimension", "array reference needs explicit subscripts", false},
	DIM003: {DIM003, "analyze", "dimension", "array feature not implemented", false},
	DIM004: {DIM004, "analyze", "dimension", "multi-dimensional arrays not implemented", false},

	GPH001: {GPH001, "analyze", "graph", "circular dependency among non-stock variables", false},
	GPH002: {GPH002, "analyze", "graph", "dependency on an unknown variable", false},

	UNIT001: {UNIT001, "analyze", "unit", "unit mismatch", true},

	SIM001: {SIM001, "analyze", "aggregate", "one or more variables have static errors", false},
	SIM002: {SIM002, "compile", "aggregate", "model is not simulatable", false},
	SIM003: {SIM003, "analyze", "aggregate", "simulation specs are invalid", false},
	SIM004: {SIM004, "analyze", "aggregate", "SMOOTHN/DELAYN order argument is collapsed to a single exponential stage", true},
}

// IsWarning reports whether code is a non-fatal diagnostic by default.
func IsWarning(code string) bool {
	return Registry[code].Warning
}
