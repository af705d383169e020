package commonjs

import (
	"reflect"
	"testing"
)

func TestClassifyShapes(t *testing.T) {
	cases := []struct {
		name        string
		source      string
		shape       Shape
		names       []string
		dynamicKeys bool
		def         DefaultKind
	}{
		{
			name:   "named only",
			source: "exports.a = 1;\nmodule.exports.b = 2;\n",
			shape:  ShapeNamedOnly,
			names:  []string{"a", "b"},
			def:    DefaultNone,
		},
		{
			name:   "default only",
			source: "module.exports = function () {};\n",
			shape:  ShapeDefaultOnly,
			def:    DefaultModuleExports,
		},
		{
			name:   "default with named properties",
			source: "module.exports = function () {};\nmodule.exports.bar = 1;\n",
			shape:  ShapeMixed,
			names:  []string{"bar"},
			def:    DefaultModuleExports,
		},
		{
			name:   "object literal keys",
			source: "var b = 2;\nmodule.exports = { a: 1, b, c() {} };\n",
			shape:  ShapeMixed,
			names:  []string{"a", "b", "c"},
			def:    DefaultModuleExports,
		},
		{
			name:   "stale writes before reassignment",
			source: "exports.a = 1;\nmodule.exports = {};\n",
			shape:  ShapeDefaultOnly,
			def:    DefaultModuleExports,
		},
		{
			name:        "computed key",
			source:      "exports[key] = 1;\n",
			shape:       ShapeDynamic,
			def:         DefaultModuleExports,
			dynamicKeys: false,
		},
		{
			name:   "every branch assigns",
			source: "if (x) { exports.a = 1; } else { exports.a = 2; }\n",
			shape:  ShapeNamedOnly,
			names:  []string{"a"},
			def:    DefaultNone,
		},
		{
			name:        "one branch assigns",
			source:      "if (x) { exports.a = 1; exports.b = 1; } else { exports.a = 2; }\n",
			shape:       ShapeNamedOnly,
			names:       []string{"a"},
			dynamicKeys: true,
			def:         DefaultModuleExports,
		},
		{
			name:        "conditional only",
			source:      "if (x) exports.a = 1;\n",
			shape:       ShapeDynamic,
			dynamicKeys: true,
			def:         DefaultModuleExports,
		},
		{
			name:   "define property",
			source: "Object.defineProperty(exports, 'a', { enumerable: true, get: function () { return 1; } });\n",
			shape:  ShapeNamedOnly,
			names:  []string{"a"},
			def:    DefaultNone,
		},
		{
			name:        "key that is not an identifier",
			source:      "exports['foo-bar'] = 1;\nexports.ok = 1;\n",
			shape:       ShapeNamedOnly,
			names:       []string{"ok"},
			dynamicKeys: true,
			def:         DefaultModuleExports,
		},
		{
			name:   "sequence",
			source: "exports.a = 1, exports.b = 2;\n",
			shape:  ShapeNamedOnly,
			names:  []string{"a", "b"},
			def:    DefaultNone,
		},
		{
			name:   "chained assignment",
			source: "exports.a = exports.b = 0;\n",
			shape:  ShapeNamedOnly,
			names:  []string{"a", "b"},
			def:    DefaultNone,
		},
		{
			name:   "es module flag",
			source: "Object.defineProperty(exports, '__esModule', { value: true });\nexports.default = 42;\nexports.answer = 42;\n",
			shape:  ShapeNamedOnly,
			names:  []string{"answer"},
			def:    DefaultExportsDefault,
		},
		{
			name:   "not commonjs",
			source: "export const a = 1;\n",
			shape:  ShapeNone,
			def:    DefaultNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := Classify(mustAnalyze(t, "/src/mod.js", tc.source), DefaultOptions())
			if class.Shape != tc.shape {
				t.Fatalf("shape = %s, want %s", class.Shape, tc.shape)
			}
			if len(class.Names) != len(tc.names) || (len(tc.names) > 0 && !reflect.DeepEqual(class.Names, tc.names)) {
				t.Fatalf("names = %v, want %v", class.Names, tc.names)
			}
			if class.HasDynamicKeys != tc.dynamicKeys {
				t.Fatalf("HasDynamicKeys = %v, want %v", class.HasDynamicKeys, tc.dynamicKeys)
			}
			if class.Default != tc.def {
				t.Fatalf("default = %d, want %d", class.Default, tc.def)
			}
		})
	}
}

func TestClassifyStrictReasons(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		graph   []string
		reasons []string
	}{
		{name: "straight line", source: "exports.a = 1;\n"},
		{name: "export inside function", source: "function init() { exports.a = 1; }\ninit();\n", reasons: []string{ReasonNestedExports}},
		{name: "export inside invoked function", source: "(function () { exports.a = 1; })();\n"},
		{name: "export inside invoked arrow", source: "(() => { module.exports = { a: 1 }; })();\n"},
		{name: "export inside function invoked with call", source: "(function () { exports.a = 1; }).call(exports);\n"},
		{name: "export inside async invoked function", source: "(async function () { exports.a = 1; })();\n", reasons: []string{ReasonNestedExports}},
		{name: "export inside function called by invoked function", source: "(function () { function set() { exports.a = 1; } set(); })();\n", reasons: []string{ReasonNestedExports}},
		{name: "export inside invoked function in a loop", source: "for (var i = 0; i < 1; i++) { (function () { exports.a = i; })(); }\n", reasons: []string{ReasonNestedExports}},
		{name: "export inside loop", source: "for (var i = 0; i < 2; i++) { exports['k' + i] = i; }\n", reasons: []string{ReasonNestedExports}},
		{name: "top-level return", source: "if (typeof window !== 'undefined') return;\nexports.a = 1;\n", reasons: []string{ReasonTopLevelReturn}},
		{name: "top-level this", source: "this.a = 1;\nexports.b = 2;\n", reasons: []string{ReasonTopLevelThis}},
		{name: "this inside arrow", source: "const f = () => this;\nexports.a = f;\n", reasons: []string{ReasonTopLevelThis}},
		{name: "this inside function", source: "exports.f = function () { return this; };\n"},
		{name: "graph reasons", source: "exports.a = 1;\n", graph: []string{ReasonCycle, ReasonCycle, ReasonDynamicTarget}, reasons: []string{ReasonCycle, ReasonDynamicTarget}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := Classify(mustAnalyze(t, "/src/mod.js", tc.source), DefaultOptions(), tc.graph...)
			if class.Strict != (len(tc.reasons) > 0) {
				t.Fatalf("Strict = %v with reasons %v", class.Strict, class.Reasons)
			}
			if len(tc.reasons) > 0 && !reflect.DeepEqual(class.Reasons, tc.reasons) {
				t.Fatalf("reasons = %v, want %v", class.Reasons, tc.reasons)
			}
		})
	}
}

func TestClassifyNestedWriteDegradesToDynamic(t *testing.T) {
	class := Classify(mustAnalyze(t, "/src/mod.js", "function init() { exports.a = 1; }\ninit();\n"), DefaultOptions())
	if class.Shape != ShapeDynamic || !class.HasDynamicKeys || len(class.Names) != 0 {
		t.Fatalf("unexpected classification %+v", class)
	}
}

func TestClassifyDefaultAlways(t *testing.T) {
	opts := DefaultOptions()
	opts.DefaultIsModuleExports = DefaultAlways
	source := "Object.defineProperty(exports, '__esModule', { value: true });\nexports.a = 1;\n"
	class := Classify(mustAnalyze(t, "/src/mod.js", source), opts)
	if class.Default != DefaultModuleExports {
		t.Fatalf("expected module.exports default, got %d", class.Default)
	}
	if !class.ESModuleFlag {
		t.Fatalf("expected the __esModule flag to be recorded")
	}
}

func TestShapeString(t *testing.T) {
	for shape, want := range map[Shape]string{
		ShapeNone:        "none",
		ShapeNamedOnly:   "named-only",
		ShapeDefaultOnly: "default-only",
		ShapeMixed:       "mixed",
		ShapeDynamic:     "dynamic",
	} {
		if shape.String() != want {
			t.Fatalf("%d.String() = %q, want %q", shape, shape.String(), want)
		}
	}
}
