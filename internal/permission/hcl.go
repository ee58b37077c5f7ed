// Package permission compiles an HCL-declared rule list into the
// session.Permission function the boundary predicate requires. The
// original source scripts this boundary check in Lua; this module
// reuses the schema package's own HCL dependency instead of introducing
// a scripting engine the rest of the pack never reaches for.
package permission

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/agentic-research/pathstore/internal/session"
)

// rule is one compiled "rule" block:
//
//	rule {
//	  ops    = ["Read", "Insert"]
//	  prefix = ["hello"]
//	  allow  = true
//	}
//
// prefix may be omitted or empty, matching every path. The first
// matching rule, in declaration order, decides the outcome; if no rule
// matches, the operation is denied.
type rule struct {
	ops    map[session.Operation]struct{}
	prefix []string
	allow  bool
}

func (r rule) matches(op session.Operation, path []string) bool {
	if _, ok := r.ops[op]; !ok {
		return false
	}
	if len(r.prefix) > len(path) {
		return false
	}
	for i, name := range r.prefix {
		if path[i] != name {
			return false
		}
	}
	return true
}

// Compile parses an HCL rule-list declaration and returns the
// session.Permission it describes.
func Compile(src []byte, filename string) (session.Permission, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("permission: parse hcl: %s", diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("permission: unexpected body type")
	}

	var rules []rule
	for _, block := range body.Blocks {
		if block.Type != "rule" {
			return nil, fmt.Errorf("permission: unknown top-level block %q", block.Type)
		}
		r, err := compileRule(block)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	return func(op session.Operation, path []string) bool {
		for _, r := range rules {
			if r.matches(op, path) {
				return r.allow
			}
		}
		return false
	}, nil
}

func compileRule(block *hclsyntax.Block) (rule, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return rule{}, fmt.Errorf("permission: rule attributes: %s", diags.Error())
	}

	r := rule{ops: make(map[session.Operation]struct{})}

	opsAttr, ok := attrs["ops"]
	if !ok {
		return rule{}, fmt.Errorf("permission: rule block missing required \"ops\" attribute")
	}
	ops, err := evalStringList(opsAttr.Expr)
	if err != nil {
		return rule{}, fmt.Errorf("permission: rule \"ops\": %w", err)
	}
	for _, name := range ops {
		op, err := parseOperation(name)
		if err != nil {
			return rule{}, err
		}
		r.ops[op] = struct{}{}
	}

	if prefixAttr, ok := attrs["prefix"]; ok {
		prefix, err := evalStringList(prefixAttr.Expr)
		if err != nil {
			return rule{}, fmt.Errorf("permission: rule \"prefix\": %w", err)
		}
		r.prefix = prefix
	}

	allowAttr, ok := attrs["allow"]
	if !ok {
		return rule{}, fmt.Errorf("permission: rule block missing required \"allow\" attribute")
	}
	allow, err := evalBool(allowAttr.Expr)
	if err != nil {
		return rule{}, fmt.Errorf("permission: rule \"allow\": %w", err)
	}
	r.allow = allow

	return r, nil
}

func evalStringList(expr hcl.Expression) ([]string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	if val.IsNull() || !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a list of strings")
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		out = append(out, v.AsString())
	}
	return out, nil
}

func evalBool(expr hcl.Expression) (bool, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return false, fmt.Errorf("%s", diags.Error())
	}
	return val.True(), nil
}

func parseOperation(name string) (session.Operation, error) {
	switch strings.ToLower(name) {
	case "read":
		return session.OpRead, nil
	case "insert":
		return session.OpInsert, nil
	case "update":
		return session.OpUpdate, nil
	case "remove":
		return session.OpRemove, nil
	default:
		return 0, fmt.Errorf("permission: unknown operation %q", name)
	}
}
