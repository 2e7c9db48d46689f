package ports

import "context"

// AccountPort updates account profiles.
type AccountPort interface {
	// UpdateProfile applies the given username and display name to the
	// account. Empty fields are left unchanged.
	UpdateProfile(ctx context.Context, userID, username, displayName string) error
}
