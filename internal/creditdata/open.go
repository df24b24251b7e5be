package creditdata

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options describes a configured credit data source.
type Options struct {
	Path      string        `yaml:"path"`
	Type      string        `yaml:"type"` // xlsx or csv; inferred from Path when empty
	Sheet     string        `yaml:"sheet"`
	Delimiter string        `yaml:"delimiter"`
	Encoding  string        `yaml:"encoding"`
	Columns   Columns       `yaml:"columns"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
}

// DefaultOptions returns options with no source path. Lookups are skipped
// until a path is configured.
func DefaultOptions() Options {
	return Options{
		Columns: DefaultColumns(),
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
	}
}

// Open builds the source described by opts, wrapped in Resilient. It returns
// nil, nil when no path is configured.
func Open(opts Options, logger *log.Logger) (Source, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, nil
	}

	kind := strings.ToLower(opts.Type)
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.Path)), ".")
	}

	var src Source
	switch kind {
	case "xlsx", "xlsm":
		src = NewXLSXSource(opts.Path, opts.Sheet, opts.Columns)
	case "csv", "txt":
		var delim rune
		if d := []rune(opts.Delimiter); len(d) == 1 {
			delim = d[0]
		} else if len(d) > 1 {
			return nil, fmt.Errorf("credit data delimiter must be one character, got %q", opts.Delimiter)
		}
		csvSrc, err := NewCSVSource(opts.Path, delim, opts.Encoding, opts.Columns)
		if err != nil {
			return nil, err
		}
		src = csvSrc
	default:
		return nil, fmt.Errorf("unsupported credit data type %q", kind)
	}

	return NewResilient(src, opts.Timeout, opts.Retries, logger), nil
}
