package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDocumentType(t *testing.T) {
	m := &Mapping{
		DocumentTypeRules: []DocumentTypeRule{
			{Name: "order", SourceField: "TYPE", SourceValues: []string{"O", "ORD"}},
			{Name: "invoice", SourceField: "TYPE", SourceValues: []string{"I"}},
		},
	}

	assert.Equal(t, "order", m.ResolveDocumentType(map[string]any{"TYPE": "O"}))
	assert.Equal(t, "invoice", m.ResolveDocumentType(map[string]any{"TYPE": "I"}))
	assert.Equal(t, "unknown", m.ResolveDocumentType(map[string]any{"TYPE": "X"}))
	assert.Equal(t, "unknown", m.ResolveDocumentType(map[string]any{}))
}

func TestMainAndDetailTableConfigs(t *testing.T) {
	m := &Mapping{
		TableConfigs: []TableConfig{
			{Name: "detail2", IsDetailTable: true, ParentTableRef: "header", ExecutionOrder: 2},
			{Name: "header", IsDetailTable: false, ExecutionOrder: 1},
			{Name: "detail1", IsDetailTable: true, ParentTableRef: "header", ExecutionOrder: 1},
		},
	}

	mains := m.MainTableConfigs()
	assert.Len(t, mains, 1)
	assert.Equal(t, "header", mains[0].Name)

	details := m.DetailTableConfigs("header")
	assert.Len(t, details, 2)
	assert.Equal(t, "detail1", details[0].Name)
	assert.Equal(t, "detail2", details[1].Name)

	assert.NotNil(t, m.FindTableConfig("header"))
	assert.Nil(t, m.FindTableConfig("missing"))
}
