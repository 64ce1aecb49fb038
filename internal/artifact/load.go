package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/npz"
	"github.com/born-ml/parity/internal/tensor"
)

// Kind identifies the storage form of a location.
type Kind int

// Location kinds.
const (
	KindUnknown Kind = iota
	KindDir
	KindNPY
	KindNPZ
	KindBundle
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindNPY:
		return "npy"
	case KindNPZ:
		return "npz"
	case KindBundle:
		return "pbnd"
	default:
		return "unknown"
	}
}

// File extensions recognized by DetectKind.
const (
	ExtNPY    = ".npy"
	ExtNPZ    = ".npz"
	ExtBundle = ".pbnd"
)

// DetectKind classifies location. Existing directories are KindDir; files
// are classified by extension.
func DetectKind(location string) (Kind, error) {
	info, err := os.Stat(location)
	if err != nil {
		return KindUnknown, err
	}
	if info.IsDir() {
		return KindDir, nil
	}
	return KindFromPath(location), nil
}

// KindFromPath classifies path by extension only.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtNPY:
		return KindNPY
	case ExtNPZ:
		return KindNPZ
	case ExtBundle:
		return KindBundle
	default:
		return KindUnknown
	}
}

// Loader reads artifact locations.
type Loader struct {
	// Concurrency bounds parallel .npy decodes for directory locations.
	// Zero uses GOMAXPROCS.
	Concurrency int

	// Logger receives progress messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Load reads location with a default Loader.
func Load(ctx context.Context, location string) (*tensor.Set, error) {
	return (&Loader{}).Load(ctx, location)
}

// LoadPair reads two locations concurrently with a default Loader.
func LoadPair(ctx context.Context, left, right string) (*tensor.Set, *tensor.Set, error) {
	return (&Loader{}).LoadPair(ctx, left, right)
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

// Load reads every array stored at location.
func (l *Loader) Load(ctx context.Context, location string) (*tensor.Set, error) {
	kind, err := DetectKind(location)
	if err != nil {
		return nil, fmt.Errorf("artifact location %s: %w", location, err)
	}

	var set *tensor.Set
	switch kind {
	case KindDir:
		set, err = l.loadDir(ctx, location)
	case KindNPY:
		set, err = loadSingle(location)
	case KindNPZ:
		set, err = l.loadNPZ(location)
	case KindBundle:
		set, err = bundle.ReadFile(location)
	default:
		return nil, fmt.Errorf("artifact location %s: unsupported file type (want a directory, %s, %s or %s)",
			location, ExtNPY, ExtNPZ, ExtBundle)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", location, err)
	}

	l.logger().Debug("artifacts loaded",
		"location", location,
		"kind", kind.String(),
		"arrays", set.Len(),
		"bytes", set.NumBytes(),
	)
	return set, nil
}

// loadNPZ decodes an archive and warns about entries that are not arrays.
func (l *Loader) loadNPZ(path string) (*tensor.Set, error) {
	rd, err := npz.Open(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	for _, name := range rd.Ignored() {
		l.logger().Warn("ignoring non-array archive entry", "location", path, "entry", name)
	}
	return rd.Set()
}

// LoadPair reads both locations concurrently. The first failure cancels the
// other load.
func (l *Loader) LoadPair(ctx context.Context, left, right string) (*tensor.Set, *tensor.Set, error) {
	var leftSet, rightSet *tensor.Set
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leftSet, err = l.Load(ctx, left)
		return err
	})
	g.Go(func() error {
		var err error
		rightSet, err = l.Load(ctx, right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return leftSet, rightSet, nil
}

func loadSingle(path string) (*tensor.Set, error) {
	a, err := npy.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := tensor.NewSet()
	if err := set.Add(KeyFromFile(path), a); err != nil {
		return nil, err
	}
	return set, nil
}

// KeyFromFile returns the array key for an .npy file: its base name without
// the extension.
func KeyFromFile(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// ListNPY returns the base names of the .npy files in dir, sorted.
func ListNPY(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ExtNPY) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// loadDir decodes the .npy files of dir concurrently and assembles them in
// sorted file name order.
func (l *Loader) loadDir(ctx context.Context, dir string) (*tensor.Set, error) {
	names, err := ListNPY(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		l.logger().Warn("no .npy files found", "dir", dir)
	}

	arrays := make([]*tensor.Array, len(names))
	g, ctx := errgroup.WithContext(ctx)
	limit := l.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := npy.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			arrays[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := tensor.NewSet()
	for i, name := range names {
		// "a.npy" and "a.NPY" map to the same key.
		if err := set.Add(KeyFromFile(name), arrays[i]); err != nil {
			return nil, err
		}
	}
	return set, nil
}
