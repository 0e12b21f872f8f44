// Package schema contains the ORM table declarations for the reporting tool.
package schema

import "github.com/uptrace/bun"

// ReportDefinition describes a reusable report: where it runs and what it runs.
// Description is the only nullable column.
type ReportDefinition struct {
	bun.BaseModel `bun:"table:report_definitions,alias:rd"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Name        string  `bun:"name,type:varchar(255),notnull,nullzero" json:"name"`
	Description *string `bun:"description,type:text" json:"description"`
	Datasource  string  `bun:"datasource,type:varchar(100),notnull,nullzero" json:"datasource"`
	Query       string  `bun:"query,type:text,notnull,nullzero" json:"query"`
}

// Column length limits of report_definitions.
const (
	NameMaxLen       = 255
	DatasourceMaxLen = 100
)

// Models returns every model owned by this package, in creation order.
func Models() []any {
	return []any{
		(*ReportDefinition)(nil),
	}
}
