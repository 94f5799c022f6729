// Package preflight makes sure the paths the service writes to exist before
// anything starts writing to them.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
)

// Check describes a required file or directory.
type Check struct {
	Path  string
	IsDir bool

	// Fatal makes a failed check fail the whole run.
	Fatal bool
}

// Result is the outcome of one Check.
type Result struct {
	Path    string
	Exists  bool
	Created bool
	Err     error
}

// Run checks each path and creates the missing ones. Directories are created
// with their parents; files are created empty, never truncated. The returned
// error joins the errors of every fatal check.
func Run(checks []Check) ([]Result, error) {
	results := make([]Result, 0, len(checks))
	var fatal []error

	for _, c := range checks {
		r := run(c)
		if r.Err != nil && c.Fatal {
			fatal = append(fatal, r.Err)
		}
		results = append(results, r)
	}

	return results, errors.Join(fatal...)
}

func run(c Check) Result {
	r := Result{Path: c.Path}

	info, err := os.Stat(c.Path)
	switch {
	case err == nil:
		r.Exists = true
		if c.IsDir && !info.IsDir() {
			r.Err = fmt.Errorf("path exists but is not a directory: %s", c.Path)
		} else if !c.IsDir && info.IsDir() {
			r.Err = fmt.Errorf("path exists but is a directory: %s", c.Path)
		}
	case os.IsNotExist(err):
		r.Err = create(c)
		r.Created = r.Err == nil
	default:
		r.Err = fmt.Errorf("failed to check path %s: %w", c.Path, err)
	}

	return r
}

func create(c Check) error {
	dir := c.Path
	if !c.IsDir {
		dir = filepath.Dir(c.Path)
	}
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if c.IsDir {
		return nil
	}

	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", c.Path, err)
	}
	return f.Close()
}

// LogFile returns the checks for a log file inside dir: the directory and the
// file itself, both fatal.
func LogFile(dir string) []Check {
	return []Check{
		{Path: dir, IsDir: true, Fatal: true},
		{Path: filepath.Join(dir, constants.DefaultLogFile), Fatal: true},
	}
}
