package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDatasetPath returns the object key for a generated dataset file, e.g.
// datasets/cases/date=2026-10-19/cases-42-093000.parquet.
func BuildDatasetPath(tableName string, generatedAt time.Time, seed int64) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if seed < 0 {
		return "", fmt.Errorf("seed must be >= 0")
	}

	ts := generatedAt.UTC()
	return path.Join(
		"datasets",
		tableName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%d-%02d%02d%02d.parquet", tableName, seed, ts.Hour(), ts.Minute(), ts.Second()),
	), nil
}

// LatestDatasetPath is the stable key the newest dataset is also written to.
func LatestDatasetPath(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join("datasets", tableName, "latest.parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
