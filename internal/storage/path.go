package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

const dumpSuffix = ".sql"

// DumpPrefix is the key prefix under which all dumps of a project live.
func DumpPrefix(projectID string) (string, error) {
	if err := validatePathComponent(projectID, "project id"); err != nil {
		return "", err
	}
	return path.Join("projects", projectID, "dumps") + "/", nil
}

// BuildDumpPath returns the object key of a dump of databaseName taken at
// createdAt. id keeps keys unique when two dumps share a second.
func BuildDumpPath(projectID, databaseName string, createdAt time.Time, id string) (string, error) {
	prefix, err := DumpPrefix(projectID)
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(databaseName, "database name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(id, "dump id"); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s%s", databaseName, createdAt.UTC().Format("20060102_150405"), id, dumpSuffix)
	return prefix + name, nil
}

// DumpPathForName resolves a dump file name, as listed to clients, back to
// its object key.
func DumpPathForName(projectID, name string) (string, error) {
	prefix, err := DumpPrefix(projectID)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(name, dumpSuffix) {
		return "", fmt.Errorf("invalid dump name: %q", name)
	}
	if err := validatePathComponent(name, "dump name"); err != nil {
		return "", err
	}
	return prefix + name, nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
