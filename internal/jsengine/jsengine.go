// Package jsengine evaluates the inline scripts the sign-in flow returns.
// The store drives its post-login redirect from third-party page script,
// so the capability is kept minimal: script text in, optional string out.
package jsengine

import (
	"github.com/dop251/goja"
)

// Evaluator runs a script and returns its final string value. ok is false
// when evaluation failed or the result was not a string.
type Evaluator interface {
	Evaluate(script string) (result string, ok bool)
}

// Goja evaluates scripts with the goja interpreter. A fresh runtime is
// built per call; login evaluates exactly one script, so there is nothing
// to reuse.
type Goja struct{}

// New returns the goja-backed evaluator.
func New() Goja {
	return Goja{}
}

// Evaluate implements Evaluator.
func (Goja) Evaluate(script string) (string, bool) {
	vm := goja.New()
	value, err := vm.RunString(script)
	if err != nil || value == nil {
		return "", false
	}
	s, ok := value.Export().(string)
	return s, ok
}
