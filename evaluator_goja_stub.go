//go:build !js_eval

package opts

// NewJSEvaluator returns nil unless the module is built with the js_eval
// tag.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return nil
}
