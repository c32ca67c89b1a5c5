package bonification

import (
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
)

// applyPromotionRules runs cfg.PromotionRules in order against g, each a
// pure function of the line set plus custCtx (spec.md §4.3 step 5). Rules
// may set discount fields on existing lines or append synthetic bonus
// lines; synthetic lines are always marked bonification.
func applyPromotionRules(cfg mapping.BonificationConfig, g *Group, custCtx mapping.CustomerContext) {
	for _, rule := range cfg.PromotionRules {
		switch rule.Kind {
		case mapping.PromotionOneTimeOffer:
			applyOneTimeOffer(g, rule, custCtx)
		case mapping.PromotionFamilyDiscount:
			applyFamilyDiscount(g, rule, custCtx)
		case mapping.PromotionScaledPromotion:
			applyScaledPromotion(cfg, g, rule, custCtx)
		}
	}
}

// applyOneTimeOffer sets a discount field on the first regular line when
// the customer has never ordered before (orderAmount == 0 is the pipeline's
// signal for a first order, since Process has no order-history access).
func applyOneTimeOffer(g *Group, rule mapping.PromotionRule, custCtx mapping.CustomerContext) {
	if custCtx.OrderAmount > 0 {
		return
	}
	discountField, _ := rule.Params["discountField"].(string)
	discountValue := rule.Params["discountValue"]
	if len(discountField) == 0 || len(g.Lines) == 0 {
		return
	}
	for i := range g.Lines {
		if !g.Lines[i].IsBonification {
			g.Lines[i].Row[discountField] = discountValue
			break
		}
	}
}

// applyFamilyDiscount sets a discount field on every regular line when the
// customer type matches rule.Params["customerType"].
func applyFamilyDiscount(g *Group, rule mapping.PromotionRule, custCtx mapping.CustomerContext) {
	wantType, _ := rule.Params["customerType"].(string)
	if len(wantType) > 0 && custCtx.CustomerType != wantType {
		return
	}
	discountField, _ := rule.Params["discountField"].(string)
	discountValue := rule.Params["discountValue"]
	if len(discountField) == 0 {
		return
	}
	for i := range g.Lines {
		if !g.Lines[i].IsBonification {
			g.Lines[i].Row[discountField] = discountValue
		}
	}
}

// applyScaledPromotion inserts one synthetic bonification line per
// threshold in rule.Params["thresholds"] the order amount meets or
// exceeds, referencing the last regular line as parent.
func applyScaledPromotion(cfg mapping.BonificationConfig, g *Group, rule mapping.PromotionRule, custCtx mapping.CustomerContext) {
	thresholds, _ := rule.Params["thresholds"].([]any)
	bonusField, _ := rule.Params["bonusField"].(string)
	if len(thresholds) == 0 || len(bonusField) == 0 {
		return
	}
	lastRegular := lastRegularLineNumber(g)
	if lastRegular == 0 {
		return
	}
	for _, raw := range thresholds {
		threshold, ok := raw.(float64)
		if !ok || custCtx.OrderAmount < threshold {
			continue
		}
		synthetic := types.Row{
			cfg.BonificationIndicatorField: cfg.BonificationIndicatorValue,
			bonusField:                     threshold,
		}
		g.Lines = append(g.Lines, Line{
			Row:            synthetic,
			IsBonification: true,
			ParentLineRef:  lastRegular,
		})
	}
}

func lastRegularLineNumber(g *Group) int {
	last := 0
	for _, l := range g.Lines {
		if !l.IsBonification && l.LineNumber > last {
			last = l.LineNumber
		}
	}
	return last
}
