package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore persists opaque blobs by key. Deleting a key that does not exist is not an error.
type FileStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// FileKey returns the institution-scoped key of an uploaded file:
// "institutions/<institutionId>/files/<fileId>".
func FileKey(institutionID, fileID string) (string, error) {
	institutionID = strings.TrimSpace(institutionID)
	fileID = strings.Trim(strings.TrimSpace(fileID), "/")
	if institutionID == "" {
		return "", fmt.Errorf("institution id is required")
	}
	if fileID == "" {
		return "", fmt.Errorf("file id is required")
	}
	if strings.ContainsAny(institutionID, "/\\") || strings.ContainsAny(fileID, "/\\") || fileID == ".." || institutionID == ".." {
		return "", fmt.Errorf("invalid file key segment")
	}
	return "institutions/" + institutionID + "/files/" + fileID, nil
}

// ParseFileKey splits a key produced by FileKey.
func ParseFileKey(key string) (institutionID, fileID string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 4 || parts[0] != "institutions" || parts[2] != "files" || parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[3], true
}
