package duckdb

import (
	"fmt"
	"io"
	"os"
)

// stageObject copies reader to path. A non-negative want is the size the
// store listed for the object; a copy of any other length fails so DuckDB
// never reads a truncated table file.
func stageObject(path string, reader io.Reader, want int64) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if want >= 0 && written != want {
		return fmt.Errorf("staged %d bytes, store listed %d", written, want)
	}
	return nil
}
