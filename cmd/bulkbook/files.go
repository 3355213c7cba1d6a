package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/bulkbook/internal/core"
)

// collectFiles expands directories into the supported files beneath them.
// Explicit file arguments are kept even when their extension is unknown so
// the parser can report them.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if _, err := core.DetectFormat(path); err == nil {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// loadFile reads and parses one attendee file.
func loadFile(path, defaultCategory string) (core.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ImportResult{}, err
	}
	return core.ParseFile(filepath.Base(path), data, defaultCategory)
}

// validateFiles reports each file's import summary and the rows that need
// completion. It returns errProblems when any file is unusable or incomplete.
func validateFiles(files []string, defaultCategory string, out io.Writer) error {
	problems := 0
	for _, path := range files {
		result, err := loadFile(path, defaultCategory)
		if err != nil {
			problems++
			fmt.Fprintf(out, "%s: %s\n", path, core.FormatUserError(err))
			continue
		}

		fmt.Fprintf(out, "%s: %s\n", path, result.Summary())
		if result.Discarded > 0 {
			fmt.Fprintf(out, "  %d line(s) skipped for having fewer than 3 fields\n", result.Discarded)
		}
		for i, r := range result.Records {
			if !r.Valid {
				fmt.Fprintf(out, "  row %d: %s is incomplete\n", i+1, r.DisplayName(i+1))
			}
		}
		if result.Invalid > 0 {
			problems++
		}
	}

	if problems > 0 {
		return fmt.Errorf("%w in %d of %d file(s)", errProblems, problems, len(files))
	}
	return nil
}

// bookFile books every attendee in path for eventID in one call.
func bookFile(ctx context.Context, booker core.Booker, eventID, path, defaultCategory string, out io.Writer) error {
	result, err := loadFile(path, defaultCategory)
	if err != nil {
		return err
	}

	set := core.NewAttendeeSet(len(result.Records), 0, defaultCategory)
	if err := set.ReplaceAll(result.Records); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", result.Summary())

	outcome, err := core.NewCoordinator(booker, nil, nil).Submit(ctx, eventID, set)
	if err != nil {
		var incomplete *core.IncompleteError
		if errors.As(err, &incomplete) {
			fmt.Fprintln(out, incomplete.Error())
			return errProblems
		}
		return err
	}

	fmt.Fprintln(out, outcome.Summary())
	return nil
}
