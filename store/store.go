// Package store is the pipeline's boundary to the shared remote artifact
// store. The pipeline is the sole decider of key structure; the client
// implementations only move bytes.
package store

import (
	"context"
)

// Client is the remote store collaborator. Keys are hierarchical
// slash-separated strings.
type Client interface {
	// Exists reports whether a record is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// ReadJSON reads the record at key into out. It returns false and
	// leaves out untouched when no record exists; callers supply a fresh
	// default value per call.
	ReadJSON(ctx context.Context, key string, out any) (bool, error)

	// WriteJSON stores v at key. Tags are attached as object metadata.
	WriteJSON(ctx context.Context, key string, v any, tags map[string]string) error

	// UploadLogo stores the local file at key and returns the remote
	// reference for it.
	UploadLogo(ctx context.Context, localPath, key string) (string, error)

	// UploadPackages uploads the package set from localDir under prefix.
	UploadPackages(ctx context.Context, localDir, prefix string) error

	// UploadTestFiles uploads test artifacts from localDir under prefix.
	UploadTestFiles(ctx context.Context, localDir, prefix string) error
}
