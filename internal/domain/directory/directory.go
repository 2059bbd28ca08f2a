package directory

// The user directory is an external collaborator; this package defines only
// the value type the escrow core exchanges with it.

// User is the directory's view of a user, for display enrichment only.
// Authorization never depends on a directory lookup.
type User struct {
	ID          string
	DisplayName string
}
