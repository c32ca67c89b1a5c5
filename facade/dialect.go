package facade

import "regexp"

// topClause matches the MSSQL "SELECT TOP N ..." prefix the stored mapping
// SQL is presumed to use (spec.md §9: "Presume only the MSSQL dialect in
// stored mapping SQL unless a per-mapping dialect is added... the facade
// must translate to $n/? and LIMIT for other engines").
var topClause = regexp.MustCompile(`(?is)^(\s*SELECT\s+)TOP\s+(\d+)\s+(.*)$`)

// translateDialect rewrites MSSQL-flavoured stored SQL for non-MSSQL
// relational targets. database/sql's named-parameter support already
// handles the @name -> positional translation per driver, so only the
// "SELECT TOP N" -> "... LIMIT N" rewrite is needed here.
func translateDialect(driverName, query string) string {
	if driverName == DriverMSSQL {
		return query
	}
	m := topClause.FindStringSubmatch(query)
	if m == nil {
		return query
	}
	return m[1] + m[3] + " LIMIT " + m[2]
}
