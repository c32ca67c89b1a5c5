package bonification

import (
	"testing"

	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() mapping.BonificationConfig {
	return mapping.BonificationConfig{
		OrderField:                 "ORDER_ID",
		LineOrderField:             "LINE_NO",
		BonificationIndicatorField: "TYPE",
		BonificationIndicatorValue: "B",
		LineNumberField:            "line_no",
	}
}

func row(order string, line int, typ string) types.Row {
	return types.Row{"ORDER_ID": order, "LINE_NO": line, "TYPE": typ}
}

// TestProcessAssignsLineNumbersAndMapsParents matches spec.md §4.3's worked
// scenario: lines 1(regular,A),2(bon,A2),3(regular,B),4(bon,B2).
func TestProcessAssignsLineNumbersAndMapsParents(t *testing.T) {
	rows := []types.Row{
		row("DOC1", 1, "R"),
		row("DOC1", 2, "B"),
		row("DOC1", 3, "R"),
		row("DOC1", 4, "B"),
	}

	groups, stats, err := Process(baseConfig(), rows, mapping.CustomerContext{})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	lines := groups[0].Lines
	require.Len(t, lines, 4)

	assert.Equal(t, 1, lines[0].LineNumber)
	assert.False(t, lines[0].IsBonification)

	assert.True(t, lines[1].IsBonification)
	assert.Equal(t, 1, lines[1].ParentLineRef)
	assert.False(t, lines[1].Orphan)

	assert.Equal(t, 2, lines[2].LineNumber)
	assert.False(t, lines[2].IsBonification)

	assert.True(t, lines[3].IsBonification)
	assert.Equal(t, 2, lines[3].ParentLineRef)

	assert.Equal(t, 2, stats.TotalBonifications)
	assert.Equal(t, 4, stats.ProcessedDetails)
	assert.Equal(t, 2, stats.BonificationTypes["B"])
}

func TestProcessGroupsByOrderFieldIndependently(t *testing.T) {
	rows := []types.Row{
		row("DOC1", 1, "R"),
		row("DOC2", 1, "R"),
		row("DOC2", 2, "B"),
	}

	groups, _, err := Process(baseConfig(), rows, mapping.CustomerContext{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "DOC1", groups[0].DocumentKey)
	assert.Equal(t, "DOC2", groups[1].DocumentKey)
}

func TestProcessOrphanPassThroughIsDefault(t *testing.T) {
	rows := []types.Row{row("DOC1", 1, "B")}

	groups, _, err := Process(baseConfig(), rows, mapping.CustomerContext{})
	require.NoError(t, err)
	require.Len(t, groups[0].Lines, 1)
	assert.True(t, groups[0].Lines[0].Orphan)
	assert.Equal(t, 0, groups[0].Lines[0].ParentLineRef)
}

func TestProcessOrphanDropRemovesLine(t *testing.T) {
	cfg := baseConfig()
	cfg.OrphanPolicy = types.OrphanDrop
	rows := []types.Row{
		row("DOC1", 1, "B"),
		row("DOC1", 2, "R"),
	}

	groups, stats, err := Process(cfg, rows, mapping.CustomerContext{})
	require.NoError(t, err)
	require.Len(t, groups[0].Lines, 1)
	assert.False(t, groups[0].Lines[0].IsBonification)
	assert.Equal(t, 1, stats.ProcessedDetails)
}

func TestProcessOrphanFailReturnsError(t *testing.T) {
	cfg := baseConfig()
	cfg.OrphanPolicy = types.OrphanFail
	rows := []types.Row{row("DOC1", 1, "B")}

	_, _, err := Process(cfg, rows, mapping.CustomerContext{})
	assert.Error(t, err)
}

func TestApplyOneTimeOfferOnFirstOrder(t *testing.T) {
	cfg := baseConfig()
	cfg.ApplyPromotionRules = true
	cfg.PromotionRules = []mapping.PromotionRule{
		{Kind: mapping.PromotionOneTimeOffer, Params: map[string]any{
			"discountField": "discount",
			"discountValue": 10,
		}},
	}
	rows := []types.Row{row("DOC1", 1, "R")}

	groups, _, err := Process(cfg, rows, mapping.CustomerContext{OrderAmount: 0})
	require.NoError(t, err)
	assert.Equal(t, 10, groups[0].Lines[0].Row["discount"])
}

func TestApplyOneTimeOfferSkippedForReturningCustomer(t *testing.T) {
	cfg := baseConfig()
	cfg.ApplyPromotionRules = true
	cfg.PromotionRules = []mapping.PromotionRule{
		{Kind: mapping.PromotionOneTimeOffer, Params: map[string]any{
			"discountField": "discount",
			"discountValue": 10,
		}},
	}
	rows := []types.Row{row("DOC1", 1, "R")}

	groups, _, err := Process(cfg, rows, mapping.CustomerContext{OrderAmount: 500})
	require.NoError(t, err)
	_, hasDiscount := groups[0].Lines[0].Row["discount"]
	assert.False(t, hasDiscount)
}

func TestApplyScaledPromotionAppendsSyntheticLine(t *testing.T) {
	cfg := baseConfig()
	cfg.ApplyPromotionRules = true
	cfg.PromotionRules = []mapping.PromotionRule{
		{Kind: mapping.PromotionScaledPromotion, Params: map[string]any{
			"thresholds": []any{float64(100)},
			"bonusField": "bonus_units",
		}},
	}
	rows := []types.Row{row("DOC1", 1, "R")}

	groups, stats, err := Process(cfg, rows, mapping.CustomerContext{OrderAmount: 150})
	require.NoError(t, err)
	require.Len(t, groups[0].Lines, 2)
	assert.True(t, groups[0].Lines[1].IsBonification)
	assert.Equal(t, 1, groups[0].Lines[1].ParentLineRef)
	assert.Equal(t, 2, stats.ProcessedDetails)
}

func TestLineOrderOfSortsRowsByLineOrderField(t *testing.T) {
	rows := []types.Row{
		row("DOC1", 3, "R"),
		row("DOC1", 1, "R"),
		row("DOC1", 2, "R"),
	}

	groups, _, err := Process(baseConfig(), rows, mapping.CustomerContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, groups[0].Lines[0].Row["LINE_NO"])
	assert.Equal(t, 2, groups[0].Lines[1].Row["LINE_NO"])
	assert.Equal(t, 3, groups[0].Lines[2].Row["LINE_NO"])
}
