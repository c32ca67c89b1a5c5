package evaluator

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/consecutive"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// nativeSQLFunctions is the documented set of passthrough SQL functions
// (spec.md §4.2 step S); matching is case-insensitive substring containment
// on the upper-cased DefaultValue.
var nativeSQLFunctions = []string{
	"GETDATE", "CURRENT_TIMESTAMP", "NEWID", "SYSUTCDATETIME", "SYSDATETIME",
	"GETUTCDATE", "DAY(", "MONTH(", "YEAR(", "DATEADD", "DATEDIFF",
}

// ConsecutiveValues carries the reserved/allocated value this document (and
// its detail rows) should stamp, resolved once per document by the caller
// before Evaluate runs (spec.md §4.1 step 3 "reserve one consecutive
// value").
type ConsecutiveValues struct {
	Enabled   bool
	Formatted string
}

// Input bundles everything Evaluate needs to resolve one table's fields.
type Input struct {
	Mapping     *mapping.Mapping
	TableConfig *mapping.TableConfig
	SourceRow   types.Row
	ColumnTypes map[string]types.ColumnType // target table's column metadata, spec.md §3.4
	Consecutive ConsecutiveValues
	IsDetail    bool
	Lookup      LookupRunner
}

// Evaluate resolves every FieldMapping in in.TableConfig against in.SourceRow,
// in the fixed order B -> L -> S -> D -> T(1-6) spec.md §4.2 specifies.
func Evaluate(in Input) (Resolution, error) {
	fields := make([]FieldValue, 0, len(in.TableConfig.FieldMappings))
	for _, fm := range in.TableConfig.FieldMappings {
		fv, err := evaluateField(in, fm)
		if err != nil {
			return Resolution{}, err
		}
		fields = append(fields, fv)
	}
	return Resolution{Fields: fields}, nil
}

func evaluateField(in Input, fm mapping.FieldMapping) (FieldValue, error) {
	// B. Bonification-specific fields.
	if in.Mapping.HasBonificationProcessing {
		bc := in.Mapping.BonificationConfig
		if fm.TargetField == bc.LineNumberField {
			if v, ok := in.SourceRow[bc.LineNumberField]; ok {
				return FieldValue{TargetField: fm.TargetField, Kind: KindPassthrough, Value: v}, nil
			}
		}
		if fm.TargetField == bc.BonificationLineReferenceField {
			if v, ok := in.SourceRow[bc.BonificationLineReferenceField]; ok {
				return FieldValue{TargetField: fm.TargetField, Kind: KindPassthrough, Value: v}, nil
			}
		}
	}

	// L. Target lookup.
	if fm.LookupFromTarget {
		if in.Lookup == nil {
			return FieldValue{}, errors.Newf("evaluator: field %q requires a lookup but no LookupRunner was provided", fm.TargetField)
		}
		value, found, err := in.Lookup(fm, in.SourceRow)
		if err != nil {
			return FieldValue{}, errors.Wrapf(err, "evaluator: lookup failed for field %q", fm.TargetField)
		}
		if !found {
			if fm.FailIfNotFound {
				return FieldValue{}, errors.Wrapf(types.ErrLookupNotFound, "evaluator: field %q", fm.TargetField)
			}
			value = nil
		}
		return applyTransforms(in, fm, value)
	}

	// S. Native SQL function passthrough.
	if isNativeSQLFunction(fm.DefaultValue) {
		return FieldValue{TargetField: fm.TargetField, Kind: KindSQLLiteral, Raw: fm.DefaultValue}, nil
	}

	// D. Source value then default.
	value, hasValue := sourceOrDefault(in.SourceRow, fm)
	if !hasValue && fm.IsRequired {
		return FieldValue{}, errors.Wrapf(types.ErrRequiredField, "evaluator: field %q", fm.TargetField)
	}

	return applyTransforms(in, fm, value)
}

// sourceOrDefault implements step D: read sourceRow[sourceField] if set,
// else defaultValue (the literal "NULL" means SQL NULL).
func sourceOrDefault(row types.Row, fm mapping.FieldMapping) (any, bool) {
	if len(fm.SourceField) > 0 {
		if v, ok := row[fm.SourceField]; ok && v != nil {
			return v, true
		}
	}
	if len(fm.DefaultValue) == 0 {
		return nil, false
	}
	if strings.EqualFold(fm.DefaultValue, "NULL") {
		return nil, false
	}
	return fm.DefaultValue, true
}

func isNativeSQLFunction(defaultValue string) bool {
	if len(defaultValue) == 0 {
		return false
	}
	upper := strings.ToUpper(defaultValue)
	for _, fn := range nativeSQLFunctions {
		if strings.Contains(upper, fn) {
			return true
		}
	}
	return false
}

// applyTransforms runs step T in its exact documented order: removePrefix,
// valueMappings, unitConversion, date normalisation, truncation, consecutive
// assignment.
func applyTransforms(in Input, fm mapping.FieldMapping, value any) (FieldValue, error) {
	// T.1 removePrefix
	if s, ok := value.(string); ok && len(fm.RemovePrefix) > 0 {
		value = strings.TrimPrefix(s, fm.RemovePrefix)
	}

	// T.2 valueMappings
	if s, ok := value.(string); ok {
		for _, vm := range fm.ValueMappings {
			if vm.SourceValue == s {
				value = vm.TargetValue
				break
			}
		}
	}

	// T.3 unitConversion
	if fm.UnitConversion != nil && fm.UnitConversion.Enabled {
		value = applyUnitConversion(in.SourceRow, fm.UnitConversion, value)
	}

	// T.4 date normalisation
	value = normalizeDate(value)

	// T.5 truncation
	if s, ok := value.(string); ok {
		if ct, ok := in.ColumnTypes[strings.ToLower(fm.TargetField)]; ok && ct.MaxLength > 0 && len(s) > ct.MaxLength {
			logger.Evaluator.Warnw("truncating value", "field", fm.TargetField, "maxLength", ct.MaxLength, "originalLength", len(s))
			value = s[:ct.MaxLength]
		}
	}

	// T.6 consecutive assignment
	if in.Consecutive.Enabled && fieldTakesConsecutive(in.Mapping.ConsecutiveConfig, in.TableConfig, fm, in.IsDetail) {
		value = in.Consecutive.Formatted
	}

	return FieldValue{TargetField: fm.TargetField, Kind: KindBound, Value: value}, nil
}

func fieldTakesConsecutive(cc mapping.ConsecutiveConfig, tc *mapping.TableConfig, fm mapping.FieldMapping, isDetail bool) bool {
	if !isDetail && fm.TargetField == cc.FieldName {
		return true
	}
	if isDetail && fm.TargetField == cc.DetailFieldName {
		return true
	}
	for _, apply := range cc.ApplyToTables {
		if apply.TableName == tc.Name && apply.FieldName == fm.TargetField {
			return true
		}
	}
	return false
}

// applyUnitConversion implements spec.md §4.2 T.3: read the conversion-factor
// field (with documented fallback names), parse the factor as decimal,
// multiply or divide, and round if configured. The unit-measure fields are
// not read.
func applyUnitConversion(row types.Row, uc *mapping.UnitConversion, value any) any {
	factorRaw, ok := firstPresent(row, fallbackOrDefault(uc.ConversionFactorFields, mapping.DefaultConversionFactorFields))
	if !ok {
		logger.Evaluator.Warnw("unit conversion: no conversion factor field present, leaving value unchanged")
		return value
	}
	factor, err := decimal.NewFromString(cast.ToString(factorRaw))
	if err != nil || factor.LessThanOrEqual(decimal.Zero) {
		logger.Evaluator.Warnw("unit conversion: conversion factor missing, non-numeric, or non-positive, leaving value unchanged", "raw", factorRaw)
		return value
	}

	amount, err := decimal.NewFromString(cast.ToString(value))
	if err != nil {
		logger.Evaluator.Warnw("unit conversion: value is not numeric, leaving unchanged", "value", value)
		return value
	}

	var result decimal.Decimal
	switch uc.Operation {
	case mapping.UnitConversionDivide:
		if factor.IsZero() {
			result = amount
		} else {
			result = amount.Div(factor)
		}
	default: // multiply, and "otherwise treat as multiply with a warning" for unrecognised operations
		if uc.Operation != mapping.UnitConversionMultiply {
			logger.Evaluator.Warnw("unit conversion: unrecognised operation, treating as multiply", "operation", uc.Operation)
		}
		result = amount.Mul(factor)
	}

	if uc.Decimals != nil {
		return result.StringFixed(int32(*uc.Decimals))
	}
	return result.String()
}

func firstPresent(row types.Row, fields []string) (any, bool) {
	for _, f := range fields {
		if v, ok := row[f]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func fallbackOrDefault(configured, fallback []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return fallback
}

// normalizeDate converts temporal values and ISO-8601-looking strings to
// the target's canonical form (spec.md §4.2 T.4): YYYY-MM-DD for pure
// dates, full ISO-8601 for timestamps.
func normalizeDate(value any) any {
	switch v := value.(type) {
	case time.Time:
		return canonicalDate(v)
	case string:
		if !looksTemporal(v) {
			return v
		}
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return v
		}
		return canonicalDate(t)
	default:
		return value
	}
}

func canonicalDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// looksTemporal is a cheap pre-filter so arbitrary non-date strings aren't
// run through dateparse (which accepts many ambiguous numeric-looking
// inputs). It requires a length of 8-35 and at least two '-' or two '/'
// separators.
func looksTemporal(s string) bool {
	if len(s) < 8 || len(s) > 35 {
		return false
	}
	return strings.ContainsAny(s, "-/") && (strings.Count(s, "-") >= 2 || strings.Count(s, "/") >= 2)
}

// ApplyConsecutiveFormat renders a reserved numeric value through a
// mapping's consecutive pattern, the same template language
// consecutive.FormatTemplate implements, so callers constructing
// ConsecutiveValues don't need to import consecutive directly if they
// already hold a formatted string.
func ApplyConsecutiveFormat(cc mapping.ConsecutiveConfig, value int64, now time.Time) string {
	pattern := cc.Pattern
	if len(pattern) == 0 {
		pattern = "{VALUE}"
	}
	return consecutive.FormatTemplate(pattern, value, cc.Prefix, now)
}
