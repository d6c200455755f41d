package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatCSV     FileFormat = "csv"
)

// TablePrefix is the key prefix under which every file of table lives.
func TablePrefix(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return tableName + "/", nil
}

func BuildTableFilePath(tableName string, part int, format FileFormat) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if part < 0 {
		return "", fmt.Errorf("part must be >= 0")
	}
	if format != FormatParquet && format != FormatCSV {
		return "", fmt.Errorf("unsupported file format %q", format)
	}
	return path.Join(tableName, fmt.Sprintf("part-%05d.%s", part, format)), nil
}

// ParseTableFile splits a key of the form <table>/<file> into the table name
// and the file format. Keys nested deeper, or with other extensions, are not
// table files.
func ParseTableFile(key string) (string, FileFormat, bool) {
	key = strings.TrimPrefix(key, "/")
	tableName, fileName, ok := strings.Cut(key, "/")
	if !ok || fileName == "" || strings.Contains(fileName, "/") {
		return "", "", false
	}
	if validatePathComponent(tableName, "table name") != nil {
		return "", "", false
	}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".parquet":
		return tableName, FormatParquet, true
	case ".csv":
		return tableName, FormatCSV, true
	default:
		return "", "", false
	}
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
