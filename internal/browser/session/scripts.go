// internal/browser/session/scripts.go
package session

import (
	_ "embed"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

//go:embed dom.js
var domJS string

// DOM operations understood by dom.js.
const (
	opQuery     = "query"
	opAncestors = "ancestors"
	opSetValue  = "setValue"
	opGetValue  = "getValue"
)

// geometryJS returns the border quad of a visible element, or null.
const geometryJS = `function (sel) {
	const node = document.querySelector(sel);
	if (!node) return null;
	const rect = node.getBoundingClientRect();
	const style = window.getComputedStyle(node);
	if (rect.width <= 0 || rect.height <= 0 || style.display === 'none' || style.visibility === 'hidden') {
		return null;
	}
	return {
		vertices: [rect.left, rect.top, rect.right, rect.top, rect.right, rect.bottom, rect.left, rect.bottom],
		width: Math.round(rect.width),
		height: Math.round(rect.height),
		tagName: node.tagName || '',
		type: node.type || ''
	};
}`

// invocation renders a call of the function expression fn with args encoded
// as JSON literals.
func invocation(fn string, args ...interface{}) (string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s)", strings.TrimSpace(fn), strings.Join(encoded, ", ")), nil
}

// valueResult is what dom.js returns for setValue and getValue.
type valueResult struct {
	Exists bool   `json:"exists"`
	Value  string `json:"value"`
}
