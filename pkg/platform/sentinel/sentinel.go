package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores. Services
// translate them into domain errors; handlers never see them directly.
//
//   - ErrNotFound: no row matches the lookup
//   - ErrConflict: a unique key is already taken
//   - ErrInvalidState: the row exists but is not in the state the mutation requires
//   - ErrUnavailable: a backing service could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
