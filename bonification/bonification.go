// Package bonification implements the Bonification Processor (component E,
// spec.md §4.3): grouping detail rows by document, classifying
// regular/bonification lines, assigning sequential line numbers, mapping
// bonifications to their parent line, and optional promotion-rule
// expansion.
package bonification

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
	"github.com/samber/lo"
)

// Line is one classified detail row after grouping.
type Line struct {
	Row            types.Row
	IsBonification bool
	LineNumber     int // assigned in step 3, only meaningful for regular lines
	ParentLineRef  int // assigned in step 4, only meaningful for bonification lines; 0 means orphan
	Orphan         bool
}

// Group is one document's classified, ordered detail lines.
type Group struct {
	DocumentKey string
	Lines       []Line
}

// Stats aggregates the bonification statistics the execution record
// carries (spec.md §4.3 step 6).
type Stats struct {
	TotalBonifications int
	TotalPromotions    int
	ProcessedDetails   int
	BonificationTypes  map[string]int
}

// Process runs the full pipeline (spec.md §4.3 steps 1-6) over rows already
// scoped to the requested documentIds. With OrphanPolicy "fail" it returns
// an error as soon as an orphan bonification is found; with "drop" orphan
// lines are removed from the group after line numbers are assigned (only
// regular lines carry numbers, so the removal does not renumber); with
// "passThrough" (the default) orphans are kept with ParentLineRef 0.
func Process(cfg mapping.BonificationConfig, rows []types.Row, ctx mapping.CustomerContext) ([]Group, Stats, error) {
	grouped := lo.GroupBy(rows, func(r types.Row) string { return toDocKey(r[cfg.OrderField]) })

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := Stats{BonificationTypes: map[string]int{}}
	groups := make([]Group, 0, len(grouped))

	for _, key := range keys {
		group := classifyGroup(cfg, key, grouped[key])
		assignLineNumbers(group)
		mapBonificationsToParents(cfg, group)

		if err := resolveOrphans(cfg, group); err != nil {
			return nil, Stats{}, errors.Wrapf(err, "bonification: document %q", key)
		}

		if cfg.ApplyPromotionRules {
			applyPromotionRules(cfg, group, ctx)
		}

		for _, l := range group.Lines {
			stats.ProcessedDetails++
			if l.IsBonification {
				stats.TotalBonifications++
				if v, ok := l.Row[cfg.BonificationIndicatorField]; ok {
					stats.BonificationTypes[toDocKey(v)]++
				}
			}
		}

		groups = append(groups, *group)
	}

	return groups, stats, nil
}

// resolveOrphans applies cfg.OrphanPolicy to lines already flagged Orphan by
// mapBonificationsToParents (spec.md §9 Open Question 1).
func resolveOrphans(cfg mapping.BonificationConfig, g *Group) error {
	switch cfg.OrphanPolicy {
	case types.OrphanFail:
		for _, l := range g.Lines {
			if l.Orphan {
				return errors.Newf("orphan bonification line with no preceding regular line")
			}
		}
	case types.OrphanDrop:
		kept := g.Lines[:0:0]
		for _, l := range g.Lines {
			if l.Orphan {
				continue
			}
			kept = append(kept, l)
		}
		g.Lines = kept
	default: // types.OrphanPassThrough and unset
	}
	return nil
}

func toDocKey(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func classifyGroup(cfg mapping.BonificationConfig, key string, rows []types.Row) *Group {
	sort.SliceStable(rows, func(i, j int) bool {
		return lineOrderOf(rows[i], cfg.LineOrderField) < lineOrderOf(rows[j], cfg.LineOrderField)
	})

	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		isBon := false
		if v, ok := r[cfg.BonificationIndicatorField]; ok {
			isBon = toDocKey(v) == cfg.BonificationIndicatorValue
		}
		lines = append(lines, Line{Row: r, IsBonification: isBon})
	}
	return &Group{DocumentKey: key, Lines: lines}
}

// assignLineNumbers implements step 3: regular rows get new sequential
// line numbers in arrival order (lineOrderField ascending, stable — already
// guaranteed by classifyGroup's sort).
func assignLineNumbers(g *Group) {
	next := 1
	for i := range g.Lines {
		if !g.Lines[i].IsBonification {
			g.Lines[i].LineNumber = next
			next++
		}
	}
}

// mapBonificationsToParents implements step 4: each bonification maps to
// the immediately preceding regular line in the group; a bonification with
// no preceding regular line is orphaned per cfg.OrphanPolicy.
func mapBonificationsToParents(cfg mapping.BonificationConfig, g *Group) {
	lastRegularLineNumber := 0
	for i := range g.Lines {
		l := &g.Lines[i]
		if !l.IsBonification {
			lastRegularLineNumber = l.LineNumber
			continue
		}
		if lastRegularLineNumber == 0 {
			l.Orphan = true
			continue
		}
		l.ParentLineRef = lastRegularLineNumber
	}
}

func lineOrderOf(row types.Row, field string) float64 {
	v, ok := row[field]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

