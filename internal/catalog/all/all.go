// Package all links every catalog backend into the binary. Import it for
// side effects from main packages that select a backend at runtime.
package all

import (
	_ "enrich/internal/catalog/jsonfile"
	_ "enrich/internal/catalog/mssql"
	_ "enrich/internal/catalog/postgres"
	_ "enrich/internal/catalog/sqlite"
)
