package mapping

// ResolveDocumentType applies DocumentTypeRules against row, first match
// wins; "unknown" when no rule matches (spec.md §3.1).
func (m *Mapping) ResolveDocumentType(row map[string]any) string {
	for _, rule := range m.DocumentTypeRules {
		v, ok := row[rule.SourceField]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, candidate := range rule.SourceValues {
			if s == candidate {
				return rule.Name
			}
		}
	}
	return "unknown"
}

// FindTableConfig returns the TableConfig named name, or nil.
func (m *Mapping) FindTableConfig(name string) *TableConfig {
	for i := range m.TableConfigs {
		if m.TableConfigs[i].Name == name {
			return &m.TableConfigs[i]
		}
	}
	return nil
}

// MainTableConfigs returns the non-detail table configs, in ascending
// ExecutionOrder (ties broken by original array order, spec.md §3.1).
func (m *Mapping) MainTableConfigs() []TableConfig {
	return filterAndSort(m.TableConfigs, func(tc TableConfig) bool { return !tc.IsDetailTable })
}

// DetailTableConfigs returns the TableConfigs whose ParentTableRef equals
// parentName, in ascending ExecutionOrder.
func (m *Mapping) DetailTableConfigs(parentName string) []TableConfig {
	return filterAndSort(m.TableConfigs, func(tc TableConfig) bool {
		return tc.IsDetailTable && tc.ParentTableRef == parentName
	})
}

func filterAndSort(all []TableConfig, keep func(TableConfig) bool) []TableConfig {
	out := make([]TableConfig, 0, len(all))
	for _, tc := range all {
		if keep(tc) {
			out = append(out, tc)
		}
	}
	// stable insertion sort on ExecutionOrder preserves original array
	// order for ties, matching "ties broken by array order" (spec.md §3.1).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ExecutionOrder < out[j-1].ExecutionOrder; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
