package drive

import "context"

// Disconnected stands in for a Client when no credential is available at
// startup. Every remote operation fails with ErrNotAuthenticated, while
// read-only local operations (search, context assembly) keep working.
type Disconnected struct{}

func (Disconnected) List(context.Context, string, string) ([]RemoteFile, error) {
	return nil, ErrNotAuthenticated
}

func (Disconnected) ListChildren(context.Context, string) ([]RemoteFile, error) {
	return nil, ErrNotAuthenticated
}

func (Disconnected) ListSharedWithMe(context.Context) ([]RemoteFile, error) {
	return nil, ErrNotAuthenticated
}

func (Disconnected) Download(context.Context, string) (string, error) {
	return "", ErrNotAuthenticated
}

func (Disconnected) Export(context.Context, string, string) (string, error) {
	return "", ErrNotAuthenticated
}
