package jsconfig

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

// maxExpressionNodes bounds the complexity of availability expressions.
const maxExpressionNodes = 64

// availabilityEnv exposes a profile to `when` expressions:
//
//	chrome && major >= 100
//	feature("JS_IMAGE_DOUBLE_BINDING")
//	satisfies(">= 115")
func availabilityEnv(p *profile.Profile) map[string]any {
	return map[string]any{
		"vendor":  string(p.Vendor()),
		"version": p.Version().String(),
		"major":   p.Major(),
		"chrome":  p.Vendor() == profile.Chrome,
		"edge":    p.Vendor() == profile.Edge,
		"firefox": p.Vendor() == profile.Firefox,
		"ie":      p.Vendor() == profile.InternetExplorer,
		"feature": func(name string) bool {
			return p.HasFeature(profile.Feature(name))
		},
		"satisfies": func(constraint string) (bool, error) {
			return p.Satisfies(constraint)
		},
	}
}

// compileAvailability type-checks an expression against the environment
// shape. An empty expression compiles to nil and always holds.
func compileAvailability(source string) (*vm.Program, error) {
	if source == "" {
		return nil, nil
	}
	return expr.Compile(source,
		expr.Env(availabilityEnv(profile.Default())),
		expr.AsBool(),
		expr.MaxNodes(maxExpressionNodes),
	)
}

func evalAvailability(program *vm.Program, env map[string]any) (bool, error) {
	if program == nil {
		return true, nil
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("expression returned %T, not bool", out)
	}
	return ok, nil
}
