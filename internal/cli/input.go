package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

const dateLayout = "2006-01-02"

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected argument %q", ErrUsage, fs.Name(), fs.Arg(0))
	}
	return nil
}

// setFlags reports which flags were given explicitly.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// parseDate accepts YYYY-MM-DD. An empty string yields the zero time, which
// clears the date on edit.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: published must be YYYY-MM-DD: %q", ErrUsage, s)
	}
	return t, nil
}

func (a *App) readCover(path string) (*models.Upload, error) {
	content, err := a.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	return &models.Upload{FileName: filepath.Base(path), Content: content}, nil
}

func requireID(fs *flag.FlagSet, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s: -id is required", ErrUsage, fs.Name())
	}
	return nil
}
