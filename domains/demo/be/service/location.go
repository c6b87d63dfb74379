package service

import (
	"fmt"
	"strings"
)

// DocumentLocation is the tracked location of a document: "<collection>/<id>".
func DocumentLocation(collection, id string) string {
	return collection + "/" + id
}

// ParseDocumentLocation splits a document location. Collections never contain '/'.
func ParseDocumentLocation(location string) (collection, id string, err error) {
	collection, id, ok := strings.Cut(location, "/")
	if !ok || collection == "" || id == "" {
		return "", "", fmt.Errorf("malformed document location %q", location)
	}
	return collection, id, nil
}

// PreferenceLocation is the tracked location of a preference: "<userId>/<key>".
func PreferenceLocation(userID, key string) string {
	return userID + "/" + key
}

// ParsePreferenceLocation splits a preference location at the first '/'.
func ParsePreferenceLocation(location string) (userID, key string, err error) {
	userID, key, ok := strings.Cut(location, "/")
	if !ok || userID == "" || key == "" {
		return "", "", fmt.Errorf("malformed preference location %q", location)
	}
	return userID, key, nil
}
