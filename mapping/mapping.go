// Package mapping defines the Mapping data model (spec.md §3.1) and the
// read-only Repository client view over the persisted mapping store
// (component B). The core treats a Mapping as immutable for the duration
// of one execution.
package mapping

import "github.com/forbearing/docxfer/types"

// Mapping is the full definition the Execution Engine loads once per
// execution and treats as immutable thereafter.
type Mapping struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SourceServer string `json:"sourceServer"`
	TargetServer string `json:"targetServer"`

	TableConfigs      []TableConfig       `json:"tableConfigs"`
	DocumentTypeRules []DocumentTypeRule  `json:"documentTypeRules"`
	ConsecutiveConfig ConsecutiveConfig   `json:"consecutiveConfig"`
	MarkProcessed     MarkProcessedConfig `json:"markProcessed"`

	HasBonificationProcessing bool               `json:"hasBonificationProcessing"`
	BonificationConfig        BonificationConfig `json:"bonificationConfig"`
}

// TableConfig is one entry of Mapping.TableConfigs.
type TableConfig struct {
	Name             string `json:"name"`
	SourceTable      string `json:"sourceTable"`
	TargetTable      string `json:"targetTable"`
	PrimaryKey       string `json:"primaryKey"`
	TargetPrimaryKey string `json:"targetPrimaryKey,omitempty"`
	ExecutionOrder   int    `json:"executionOrder"`
	IsDetailTable    bool   `json:"isDetailTable"`
	// ParentTableRef names a TableConfig.Name entry for a main (non-detail)
	// table. Required when IsDetailTable is true.
	ParentTableRef  string `json:"parentTableRef,omitempty"`
	CustomQuery     string `json:"customQuery,omitempty"` // may contain the literal token @documentId
	FilterCondition string `json:"filterCondition,omitempty"`
	OrderByColumn   string `json:"orderByColumn,omitempty"`

	FieldMappings []FieldMapping `json:"fieldMappings"`
}

// FieldMapping describes how one target column is produced from a source
// row, per spec.md §4.2.
type FieldMapping struct {
	SourceField string `json:"sourceField,omitempty"`
	TargetField string `json:"targetField"`
	// DefaultValue's literal "NULL" means SQL NULL (spec.md §3.1).
	DefaultValue string `json:"defaultValue,omitempty"`
	IsRequired   bool   `json:"isRequired"`
	RemovePrefix string `json:"removePrefix,omitempty"`

	ValueMappings []ValueMapping `json:"valueMappings,omitempty"`

	UnitConversion *UnitConversion `json:"unitConversion,omitempty"`

	LookupFromTarget bool          `json:"lookupFromTarget"`
	LookupQuery      string        `json:"lookupQuery,omitempty"`
	LookupParams     []LookupParam `json:"lookupParams,omitempty"`
	FailIfNotFound   bool          `json:"failIfNotFound"`
	ValidateExistence bool         `json:"validateExistence"`
}

// ValueMapping is one {sourceValue, targetValue} substitution pair.
type ValueMapping struct {
	SourceValue string `json:"sourceValue"`
	TargetValue string `json:"targetValue"`
}

// LookupParam binds a source row field to a named SQL parameter used in a
// FieldMapping.LookupQuery.
type LookupParam struct {
	SourceField string `json:"sourceField"`
	ParamName   string `json:"paramName"`
}

// UnitConversionOp is the arithmetic operation a UnitConversion applies.
type UnitConversionOp string

const (
	UnitConversionMultiply UnitConversionOp = "multiply"
	UnitConversionDivide   UnitConversionOp = "divide"
)

// UnitConversion configures transformation step T.3 (spec.md §4.2).
// UnitMeasureFields/ConversionFactorFields list the documented fallback
// source-field names (Unit_Measure/UNI_MED/UNIDAD/TIPO_UNIDAD and
// Factor_Conversion/CNT_MAX/FACTOR/CONV_FACTOR). The evaluator tries
// ConversionFactorFields in order; UnitMeasureFields is not read by it.
type UnitConversion struct {
	Enabled               bool             `json:"enabled"`
	Operation             UnitConversionOp `json:"operation"`
	UnitMeasureFields     []string         `json:"unitMeasureFields,omitempty"`
	ConversionFactorFields []string        `json:"conversionFactorFields,omitempty"`
	Decimals              *int             `json:"decimals,omitempty"`
}

// DefaultUnitMeasureFields and DefaultConversionFactorFields are the
// documented fallback field names used when a UnitConversion does not
// override them.
var (
	DefaultUnitMeasureFields      = []string{"Unit_Measure", "UNI_MED", "UNIDAD", "TIPO_UNIDAD"}
	DefaultConversionFactorFields = []string{"Factor_Conversion", "CNT_MAX", "FACTOR", "CONV_FACTOR"}
)

// DocumentTypeRule is one entry of Mapping.DocumentTypeRules; first match
// wins, else the document type is "unknown".
type DocumentTypeRule struct {
	Name         string   `json:"name"`
	SourceField  string   `json:"sourceField"`
	SourceValues []string `json:"sourceValues"`
}

// ConsecutiveConfig configures consecutive-number assignment for this
// mapping (spec.md §3.1, §4.4).
type ConsecutiveConfig struct {
	Enabled              bool               `json:"enabled"`
	UseCentralizedService bool              `json:"useCentralizedService"`
	ConsecutiveName      string             `json:"consecutiveName"`
	FieldName            string             `json:"fieldName"`       // header target column
	DetailFieldName      string             `json:"detailFieldName"` // detail target column
	ApplyToTables        []ApplyToTable     `json:"applyToTables,omitempty"`
	Pattern              string             `json:"pattern"`
	Prefix               string             `json:"prefix,omitempty"`
	Padding              int                `json:"padding"`
	StartValue           int64              `json:"startValue"`
	Increment            int64              `json:"increment"`
	// LastValue is only meaningful for local-mode (non-centralized) counters.
	LastValue int64 `json:"lastValue"`
}

// ApplyToTable extends consecutive assignment to an additional table/field
// pair beyond the header/detail defaults.
type ApplyToTable struct {
	TableName string `json:"tableName"`
	FieldName string `json:"fieldName"`
}

// MarkProcessedConfig controls how the engine marks source rows as handled
// (spec.md §3.1, §4.1 step 7).
type MarkProcessedConfig struct {
	Field             string              `json:"markProcessedField"`
	ProcessedValue    string              `json:"markProcessedValue"`
	UnprocessedValue  string              `json:"markUnprocessedValue"`
	Strategy          types.MarkStrategy  `json:"markProcessedStrategy"`
	AllowRollback     bool                `json:"allowRollback"`
}

// BonificationConfig configures the Bonification Processor (spec.md §4.3).
type BonificationConfig struct {
	SourceTable                    string              `json:"sourceTable"`
	OrderField                     string              `json:"orderField"`     // document key in details
	LineOrderField                 string              `json:"lineOrderField"` // line number
	BonificationIndicatorField     string              `json:"bonificationIndicatorField"`
	BonificationIndicatorValue     string              `json:"bonificationIndicatorValue"`
	LineNumberField                string              `json:"lineNumberField"`                // target
	BonificationLineReferenceField string              `json:"bonificationLineReferenceField"` // target
	ApplyPromotionRules            bool                `json:"applyPromotionRules"`
	OrphanPolicy                   types.OrphanPolicy  `json:"orphanPolicy"`
	PromotionRules                 []PromotionRule     `json:"promotionRules,omitempty"`
}

// PromotionRuleKind is one of the deterministic promotion rule kinds
// spec.md §4.3 step 5 names.
type PromotionRuleKind string

const (
	PromotionOneTimeOffer    PromotionRuleKind = "oneTimeOffer"
	PromotionFamilyDiscount  PromotionRuleKind = "familyDiscount"
	PromotionScaledPromotion PromotionRuleKind = "scaledPromotion"
)

// PromotionRule is one deterministic promotion-expansion rule, a pure
// function of the row set plus CustomerContext.
type PromotionRule struct {
	Kind   PromotionRuleKind `json:"kind"`
	Params map[string]any    `json:"params,omitempty"`
}

// CustomerContext is the extra context promotion rules may consult,
// spec.md §4.3 step 5.
type CustomerContext struct {
	CustomerID   string
	CustomerType string
	PriceList    string
	Zone         string
	OrderAmount  float64
	OrderDate    string
}
