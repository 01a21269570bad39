// Package scope defines the value type which identifies whose principal key
// is being addressed: a single database in a tablespace, or the reserved
// global scope which designates cluster-wide state (the write-ahead log key).
package scope

import "fmt"

// Reserved identifiers.
const (
	// GlobalDatabaseId is the reserved database id of the global scope.
	GlobalDatabaseId uint32 = 1664

	// GlobalTablespaceId is the reserved tablespace id of the global scope.
	GlobalTablespaceId uint32 = 1664

	// DefaultTablespaceId is the tablespace databases live in unless placed
	// elsewhere.
	DefaultTablespaceId uint32 = 1663
)

// Scope identifies the owner of key state: a (database, tablespace) pair.
type Scope struct {
	DatabaseId   uint32
	TablespaceId uint32
}

// Global is the reserved scope holding the cluster-wide write-ahead log key.
var Global = Scope{DatabaseId: GlobalDatabaseId, TablespaceId: GlobalTablespaceId}

// New creates a Scope for the database and tablespace pair.
func New(databaseId, tablespaceId uint32) Scope {
	return Scope{DatabaseId: databaseId, TablespaceId: tablespaceId}
}

// ForDatabase creates a Scope for a database in the default tablespace.
func ForDatabase(databaseId uint32) Scope {
	return Scope{DatabaseId: databaseId, TablespaceId: DefaultTablespaceId}
}

// IsGlobal reports whether the scope is the reserved global scope.
func (s Scope) IsGlobal() bool {
	return s == Global
}

// String renders the scope as "databaseId_tablespaceId", which is also the
// form used in on-disk file names.
func (s Scope) String() string {
	return fmt.Sprintf("%d_%d", s.DatabaseId, s.TablespaceId)
}
