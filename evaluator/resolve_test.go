package evaluator

import (
	"testing"

	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput(fm ...mapping.FieldMapping) Input {
	return Input{
		Mapping:     &mapping.Mapping{},
		TableConfig: &mapping.TableConfig{Name: "header", FieldMappings: fm},
		SourceRow:   types.Row{},
		ColumnTypes: map[string]types.ColumnType{},
	}
}

func TestEvaluateSourceThenDefault(t *testing.T) {
	in := baseInput(mapping.FieldMapping{SourceField: "NUM", TargetField: "num_doc", DefaultValue: "X"})
	in.SourceRow = types.Row{"NUM": "P1"}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "P1", res.Fields[0].Value)
}

func TestEvaluateDefaultNullLiteralIsSQLNull(t *testing.T) {
	in := baseInput(mapping.FieldMapping{TargetField: "note", DefaultValue: "NULL"})
	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Nil(t, res.Fields[0].Value)
}

func TestEvaluateRequiredFieldMissingFails(t *testing.T) {
	in := baseInput(mapping.FieldMapping{TargetField: "num_doc", IsRequired: true})
	_, err := Evaluate(in)
	assert.Error(t, err)
}

func TestEvaluateNativeSQLFunctionIsRaw(t *testing.T) {
	in := baseInput(mapping.FieldMapping{TargetField: "created_at", DefaultValue: "GETDATE()"})
	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, KindSQLLiteral, res.Fields[0].Kind)
	assert.Equal(t, "GETDATE()", res.Fields[0].Raw)
}

func TestEvaluateRemovePrefixThenValueMapping(t *testing.T) {
	fm := mapping.FieldMapping{
		SourceField:  "CODE",
		TargetField:  "code",
		RemovePrefix: "PRE_",
		ValueMappings: []mapping.ValueMapping{
			{SourceValue: "A", TargetValue: "Alpha"},
		},
	}
	in := baseInput(fm)
	in.SourceRow = types.Row{"CODE": "PRE_A"}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.Fields[0].Value)
}

func TestEvaluateUnitConversionMultiply(t *testing.T) {
	decimals := 2
	fm := mapping.FieldMapping{
		SourceField: "QTY",
		TargetField: "qty",
		UnitConversion: &mapping.UnitConversion{
			Enabled:   true,
			Operation: mapping.UnitConversionMultiply,
			Decimals:  &decimals,
		},
	}
	in := baseInput(fm)
	in.SourceRow = types.Row{"QTY": "10", "Factor_Conversion": "1.5"}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "15.00", res.Fields[0].Value)
}

func TestEvaluateUnitConversionMissingFactorLeavesValueUnchanged(t *testing.T) {
	fm := mapping.FieldMapping{
		SourceField: "QTY",
		TargetField: "qty",
		UnitConversion: &mapping.UnitConversion{
			Enabled:   true,
			Operation: mapping.UnitConversionMultiply,
		},
	}
	in := baseInput(fm)
	in.SourceRow = types.Row{"QTY": "10"}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "10", res.Fields[0].Value)
}

func TestEvaluateTruncation(t *testing.T) {
	fm := mapping.FieldMapping{SourceField: "NAME", TargetField: "name"}
	in := baseInput(fm)
	in.SourceRow = types.Row{"NAME": "a very long name indeed"}
	in.ColumnTypes = map[string]types.ColumnType{"name": {SQLType: "varchar", MaxLength: 5}}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "a ver", res.Fields[0].Value)
}

func TestEvaluateConsecutiveAssignment(t *testing.T) {
	fm := mapping.FieldMapping{TargetField: "num_doc"}
	in := baseInput(fm)
	in.Mapping.ConsecutiveConfig = mapping.ConsecutiveConfig{Enabled: true, FieldName: "num_doc"}
	in.Consecutive = ConsecutiveValues{Enabled: true, Formatted: "ORD-000011"}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, "ORD-000011", res.Fields[0].Value)
}

func TestEvaluateLookupFailIfNotFound(t *testing.T) {
	fm := mapping.FieldMapping{TargetField: "dim_id", LookupFromTarget: true, FailIfNotFound: true}
	in := baseInput(fm)
	in.Lookup = func(mapping.FieldMapping, types.Row) (any, bool, error) { return nil, false, nil }

	_, err := Evaluate(in)
	assert.Error(t, err)
}

func TestEvaluateLookupNotFoundNotRequiredYieldsNull(t *testing.T) {
	fm := mapping.FieldMapping{TargetField: "dim_id", LookupFromTarget: true}
	in := baseInput(fm)
	in.Lookup = func(mapping.FieldMapping, types.Row) (any, bool, error) { return nil, false, nil }

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Nil(t, res.Fields[0].Value)
}

func TestInsertSQLBuildsBoundAndRawExpressions(t *testing.T) {
	res := Resolution{Fields: []FieldValue{
		{TargetField: "id", Kind: KindBound, Value: "P1"},
		{TargetField: "created_at", Kind: KindSQLLiteral, Raw: "GETDATE()"},
	}}
	sql := res.InsertSQL("orders")
	assert.Equal(t, "INSERT INTO orders (id, created_at) VALUES (@id, GETDATE())", sql)
}

func TestBonificationPassthrough(t *testing.T) {
	fm := mapping.FieldMapping{TargetField: "line_no"}
	in := baseInput(fm)
	in.Mapping.HasBonificationProcessing = true
	in.Mapping.BonificationConfig = mapping.BonificationConfig{LineNumberField: "line_no"}
	in.SourceRow = types.Row{"line_no": 3}

	res, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, KindPassthrough, res.Fields[0].Kind)
	assert.Equal(t, 3, res.Fields[0].Value)
}
