// Package migrate applies the goose SQL migrations, either from a directory
// on disk or from the copy compiled into the binary.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Command is one of the goose verbs the CLI exposes.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

// Result summarises what a run changed.
type Result struct {
	Applied  []int64
	Reverted []int64
	Pending  []int64
	Current  int64
}

type Runner struct {
	provider *goose.Provider
}

// NewRunner opens a provider over fsys, where migration files sit at the
// root. dialect is usually goose.DialectPostgres.
func NewRunner(db *sql.DB, fsys fs.FS, dialect goose.Dialect) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migrations filesystem is required")
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: p}, nil
}

// DirFS exposes a migrations directory on disk.
func DirFS(dir string) (fs.FS, error) {
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	return os.DirFS(dir), nil
}

func (r *Runner) Run(ctx context.Context, cmd Command, target string) (Result, error) {
	var out Result
	switch cmd {
	case CommandUp:
		results, err := r.provider.Up(ctx)
		collect(&out.Applied, results)
		if err != nil {
			return out, fmt.Errorf("goose up: %w", err)
		}
	case CommandDown:
		res, err := r.provider.Down(ctx)
		if err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
			return out, fmt.Errorf("goose down: %w", err)
		}
		if res != nil && res.Source != nil {
			out.Reverted = append(out.Reverted, res.Source.Version)
		}
	case CommandStatus:
		statuses, err := r.provider.Status(ctx)
		if err != nil {
			return out, fmt.Errorf("goose status: %w", err)
		}
		for _, s := range statuses {
			if s.State == goose.StatePending {
				out.Pending = append(out.Pending, s.Source.Version)
			}
		}
	case CommandVersion:
		if err := r.migrateTo(ctx, target, &out); err != nil {
			return out, err
		}
	default:
		return out, fmt.Errorf("unknown migrate command %q", cmd)
	}

	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return out, fmt.Errorf("get db version: %w", err)
	}
	out.Current = current
	return out, nil
}

// migrateTo moves up or down to target depending on where the schema is.
func (r *Runner) migrateTo(ctx context.Context, target string, out *Result) error {
	if target == "" {
		return errors.New("target version is required")
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < version:
		results, err := r.provider.UpTo(ctx, version)
		collect(&out.Applied, results)
		if err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	case current > version:
		results, err := r.provider.DownTo(ctx, version)
		collect(&out.Reverted, results)
		if err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}

func collect(dst *[]int64, results []*goose.MigrationResult) {
	for _, res := range results {
		if res != nil && res.Source != nil && res.Error == nil {
			*dst = append(*dst, res.Source.Version)
		}
	}
}
