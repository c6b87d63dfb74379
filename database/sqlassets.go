package sqlassets

import _ "embed"

//go:embed schema/platform/institutions.sql
var InstitutionsSQL string

//go:embed schema/platform/documents.sql
var DocumentsSQL string

//go:embed schema/platform/accounts.sql
var AccountsSQL string

//go:embed schema/platform/demo_changes.sql
var DemoChangesSQL string

// Ordered returns the platform DDL in the order it must be applied.
func Ordered() []string {
	return []string{InstitutionsSQL, AccountsSQL, DocumentsSQL, DemoChangesSQL}
}
