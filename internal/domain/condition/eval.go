package condition

import (
	"fmt"
	"strings"

	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

// Evaluate walks a Condition AST against rec (§4.2). A missing field
// (record.Get returns nil) is decided before any atom is matched: "=" and
// "IN" are false and "!=" and "NOT IN" are true, whatever the atoms are.
//
// Matching semantics per atom kind:
//   - literal: case-insensitive string equality
//   - regex: case-insensitive substring match, autofixed per NormalizeBrokenRegex
//   - formal-regex: case-sensitive substring match, never autofixed
func Evaluate(cond *Condition, rec record.Map, cache *RegexCache) (bool, error) {
	if cond == nil {
		return true, nil
	}

	switch cond.Op {
	case OpAnd:
		for _, child := range cond.Children {
			ok, err := Evaluate(child, rec, cache)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case OpOr:
		for _, child := range cond.Children {
			ok, err := Evaluate(child, rec, cache)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpEqual, OpNotEqual:
		raw := record.Get(rec, cond.Field)
		if raw == nil {
			return cond.Op == OpNotEqual, nil
		}
		value := record.Stringify(raw)
		matched, err := matchAtom(value, cond.Value, cache)
		if err != nil {
			return false, err
		}
		if cond.Op == OpNotEqual {
			return !matched, nil
		}
		return matched, nil

	case OpIn, OpNotIn:
		raw := record.Get(rec, cond.Field)
		if raw == nil {
			return cond.Op == OpNotIn, nil
		}
		value := record.Stringify(raw)
		any := false
		for _, atom := range cond.List {
			matched, err := matchAtom(value, atom, cache)
			if err != nil {
				return false, err
			}
			if matched {
				any = true
				break
			}
		}
		if cond.Op == OpNotIn {
			return !any, nil
		}
		return any, nil

	default:
		return false, fmt.Errorf("%w: %q", errUnsupported, cond.Op)
	}
}

func matchAtom(value string, atom Atom, cache *RegexCache) (bool, error) {
	switch atom.Kind {
	case AtomLiteral:
		return strings.EqualFold(value, atom.Pattern), nil
	case AtomRegex:
		re, err := cache.Compile(atom, true)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case AtomFormalRegex:
		re, err := cache.Compile(atom, false)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	default:
		return false, fmt.Errorf("%w: atom kind %q", errUnsupported, atom.Kind)
	}
}
