package storage

import (
	"fmt"
	"path"
	"regexp"
)

const cacheObjectDir = "cache"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,254}$`)

// BuildCacheObjectKey maps a local artifact file name to its key in the mirror.
// Artifact names already embed the identity hash, so the key is flat.
func BuildCacheObjectKey(artifactName string) (string, error) {
	if err := validatePathComponent(artifactName, "artifact name"); err != nil {
		return "", err
	}
	return path.Join(cacheObjectDir, artifactName), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
