package dynrequire

import (
	"path"
	"strings"
)

// Normalize collapses "." and ".." segments and duplicate separators the way
// POSIX path.normalize does in Node: an empty path becomes ".", and a trailing
// separator survives unless the result is the root.
func Normalize(p string) string {
	if p == "" {
		return "."
	}
	out := path.Clean(p)
	if strings.HasSuffix(p, "/") && out != "/" {
		out += "/"
	}
	return out
}

// Key is the dispatch-table form of a requested path: normalized, and
// re-prefixed with "./" when the request was relative and normalization
// dropped the prefix. The runtime helper returned by NormalizeHelper computes
// the same function.
func Key(p string) string {
	out := Normalize(p)
	if !strings.HasPrefix(p, ".") || strings.HasPrefix(out, "/") {
		return out
	}
	if out == "." || out == ".." || strings.HasPrefix(out, "./") || strings.HasPrefix(out, "../") {
		return out
	}
	return "./" + out
}

// NormalizeHelper returns the JavaScript source of a function named name that
// computes Key at runtime.
func NormalizeHelper(name string) string {
	return `function ` + name + `(path) {
	path = String(path);
	var isAbsolute = path.charAt(0) === "/";
	var trailingSlash = path.charAt(path.length - 1) === "/";
	var segments = path.split("/");
	var out = [];
	for (var i = 0; i < segments.length; i++) {
		var segment = segments[i];
		if (segment === "" || segment === ".") continue;
		if (segment === "..") {
			if (out.length > 0 && out[out.length - 1] !== "..") out.pop();
			else if (!isAbsolute) out.push("..");
			continue;
		}
		out.push(segment);
	}
	var result = out.join("/");
	if (isAbsolute) result = "/" + result;
	else if (result === "") result = ".";
	if (trailingSlash && result !== "/") result += "/";
	if (!isAbsolute && path.charAt(0) === "." && result !== "." && result !== ".." && result.indexOf("./") !== 0 && result.indexOf("../") !== 0) {
		result = "./" + result;
	}
	return result;
}
`
}
