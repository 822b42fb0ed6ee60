// Package enrichment implements the enrichment engine (C5, §4.5): applying
// ordered rulesets of mapping/composition/extraction rules to a record, then
// the maintenance and correlation passes and the final falsy-value prune.
package enrichment

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/correlation"
	"github.com/pdaltagent/pdgateway/internal/domain/maintenance"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

// Snapshot is the immutable, refresh-swapped view of loaded configuration
// the rule store (C4) hands the engine (§4.4).
type Snapshot struct {
	Rulesets         []*rules.Ruleset
	Tables           map[string]*rules.MappingTable
	Windows          []*rules.MaintenanceWindow
	CorrelationRules []*rules.CorrelationRule
}

// Options configures one Enrich call.
type Options struct {
	Prefix     string // prepend-prefix subtree, e.g. "custom_details."
	Debug      bool   // attach enrichments.<destination> trace entries
	Now        time.Time
	DisplayLoc *time.Location // IANA zone for maintenance-window display (§4.6)
	Cache      *condition.RegexCache
}

// Enrich runs the full C5 pipeline over rec in place, per §4.5:
// rulesets → maintenance → correlation → falsy prune.
func Enrich(rec record.Map, snap *Snapshot, opts Options) {
	if opts.Cache == nil {
		opts.Cache = condition.NewRegexCache(256)
	}

	for _, rs := range snap.Rulesets {
		applyRuleset(rec, rs, snap.Tables, opts)
	}

	inMaint, applied := maintenance.Evaluate(snap.Windows, rec, opts.Cache, opts.Now, displayLocOrUTC(opts.DisplayLoc))
	_ = record.Set(rec, record.MakePath(opts.Prefix, "is_in_maint"), inMaint)
	if inMaint {
		_ = record.Set(rec, record.MakePath(opts.Prefix, "maintenance_windows"), windowSummaries(applied))
	}

	correlation.TagAll(rec, opts.Prefix, snap.CorrelationRules, opts.Cache)

	record.Prune(rec)
}

func displayLocOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func windowSummaries(applied []maintenance.Window) []interface{} {
	out := make([]interface{}, len(applied))
	for i, w := range applied {
		out[i] = record.Map{
			"maintenance_key": w.MaintenanceKey,
			"name":            w.Name,
			"start":           w.StartDisplay,
			"end":             w.EndDisplay,
		}
	}
	return out
}

func applyRuleset(rec record.Map, rs *rules.Ruleset, tables map[string]*rules.MappingTable, opts Options) {
	for _, rule := range rs.Rules {
		if rule.SelectedSourceSystem != "" && !sourceSystemMatches(rec, opts, rule.SelectedSourceSystem) {
			continue
		}
		if rule.When != nil {
			ok, err := condition.Evaluate(rule.When, rec, opts.Cache)
			if err != nil || !ok {
				continue
			}
		}

		wrote := applyRule(rec, rule, tables, opts)
		if rs.Type == rules.MatchFirst && wrote {
			break
		}
	}
}

func sourceSystemMatches(rec record.Map, opts Options, pattern string) bool {
	atom := condition.NewRegexAtom(pattern)
	re, err := opts.Cache.Compile(atom, true)
	if err != nil {
		return false
	}
	value := record.Stringify(record.Get(rec, record.MakePath(opts.Prefix, "source_system")))
	return re.MatchString(value)
}

func applyRule(rec record.Map, rule *rules.Rule, tables map[string]*rules.MappingTable, opts Options) bool {
	switch rule.Kind {
	case rules.KindMapping:
		return applyMapping(rec, rule, tables, opts)
	case rules.KindComposition:
		return applyComposition(rec, rule, opts)
	case rules.KindExtraction:
		return applyExtraction(rec, rule, opts)
	default:
		return false
	}
}

func applyMapping(rec record.Map, rule *rules.Rule, tables map[string]*rules.MappingTable, opts Options) bool {
	m := rule.Mapping
	table, ok := tables[m.Table]
	if !ok {
		return false
	}

	query := map[string]string{}
	for _, f := range m.Fields {
		if f.Tag != rules.QueryTag {
			continue
		}
		v := record.Get(rec, record.MakePath(opts.Prefix, f.Name))
		if v == nil {
			if f.Optional {
				continue
			}
			return false
		}
		query[f.Name] = record.Stringify(v)
	}

	row, ok := table.Lookup(query)
	if !ok {
		return false
	}

	wrote := false
	for _, f := range m.Fields {
		if f.Tag != rules.ResultTag {
			continue
		}
		value, ok := row[f.Name]
		if !ok {
			continue
		}
		dest := record.MakePath(opts.Prefix, f.Name)
		existing := record.Get(rec, dest)
		if existing != nil && !f.OverrideExisting {
			continue
		}
		_ = record.Set(rec, dest, value)
		wrote = true
		trace(rec, opts, f.Name, value, rule)
	}
	return wrote
}

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

func applyComposition(rec record.Map, rule *rules.Rule, opts Options) bool {
	wrote := false
	for _, target := range rule.Composition.Targets {
		value, ok := interpolate(target.Value, rec, opts.Prefix)
		if !ok {
			continue
		}
		dest := record.MakePath(opts.Prefix, target.Destination)
		_ = record.Set(rec, dest, value)
		wrote = true
		trace(rec, opts, target.Destination, value, rule)
	}
	return wrote
}

// interpolate substitutes ${key} placeholders from the record's prefix
// subtree; a missing key aborts only this destination (§4.5 step 3).
func interpolate(template string, rec record.Map, prefix string) (string, bool) {
	missing := false
	result := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := m[2 : len(m)-1]
		v := record.Get(rec, record.MakePath(prefix, key))
		if v == nil {
			missing = true
			return m
		}
		return record.Stringify(v)
	})
	if missing {
		return "", false
	}
	return result, true
}

var templateGroupRe = regexp.MustCompile(`\$(\d+)`)

func applyExtraction(rec record.Map, rule *rules.Rule, opts Options) bool {
	ext := rule.Extraction
	source := record.Stringify(record.Get(rec, record.MakePath(opts.Prefix, ext.Source)))

	re, err := opts.Cache.Compile(ext.Regex, false)
	if err != nil {
		return false
	}

	groups := re.FindStringSubmatch(source)
	if groups == nil {
		return false
	}

	filled := true
	result := templateGroupRe.ReplaceAllStringFunc(ext.Template, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		if n <= 0 || n >= len(groups) {
			filled = false
			return m
		}
		return groups[n]
	})
	if !filled {
		return false // I3/P5: any unsubstituted $N aborts the write
	}

	dest := record.MakePath(opts.Prefix, ext.Destination)
	_ = record.Set(rec, dest, result)
	trace(rec, opts, ext.Destination, result, rule)
	return true
}

func trace(rec record.Map, opts Options, destination string, value interface{}, rule *rules.Rule) {
	if !opts.Debug {
		return
	}
	path := record.MakePath(opts.Prefix, "enrichments."+strings.TrimPrefix(destination, "."))
	_ = record.Set(rec, path, record.Map{
		"value":     value,
		"rule_type": string(rule.Kind),
		"rule_id":   rule.ID,
	})
}
