// Package correlation derives synthetic correlation keys from record fields
// (§4.7): a correlation rule whose filter matches the record contributes one
// key/value pair built from its sorted tag fields.
package correlation

import (
	"sort"
	"strings"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

// Tag writes the key/value pair for one correlation rule into rec under
// "correlations.<key>", resolving each tag's value under prefix. It yields
// nothing (and writes nothing) if the filter doesn't match, or any tag
// value is null or empty.
func Tag(rec record.Map, prefix string, rule *rules.CorrelationRule, cache *condition.RegexCache) error {
	matched, err := condition.Evaluate(rule.Filter, rec, cache)
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	tags := append([]string(nil), rule.Tags...)
	sort.Strings(tags)

	values := make([]string, len(tags))
	for i, tag := range tags {
		v := record.Get(rec, record.MakePath(prefix, tag))
		if v == nil {
			return nil
		}
		s := record.Stringify(v)
		if s == "" {
			return nil
		}
		values[i] = s
	}

	key := strings.Join(tags, "+")
	value := strings.Join(values, "+")
	return record.Set(rec, record.MakePath(prefix, "correlations."+key), value)
}

// TagAll applies every correlation rule in order, ignoring malformed-filter
// errors for one rule rather than aborting the record (§7 error isolation).
func TagAll(rec record.Map, prefix string, correlationRules []*rules.CorrelationRule, cache *condition.RegexCache) {
	for _, rule := range correlationRules {
		_ = Tag(rec, prefix, rule, cache)
	}
}
