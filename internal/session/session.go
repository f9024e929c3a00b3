// internal/session/session.go
package session

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"qvcs/internal/config"
	"qvcs/internal/logging"
	"qvcs/internal/merge"
	"qvcs/internal/quantum"
	qstorage "qvcs/internal/quantum/storage"
	"qvcs/internal/storage"
	"qvcs/internal/watch"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// DirName is the metadata directory at the root of a repository
const DirName = ".qvcs"

// Session is an open repository: the in-memory aggregate restored from its
// badger store, plus everything the commands need around it
type Session struct {
	Root   string
	Config *config.Config
	Repo   *quantum.Repository
	Store  *qstorage.Store
	Logger *logging.Logger

	db     *badger.DB
	saveMu sync.Mutex
}

// Initialize creates the metadata directory under root
func Initialize(root string) error {
	dir := filepath.Join(root, DirName)
	for _, d := range []string{dir, filepath.Join(dir, "db")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}

// IsInitialized reports whether root holds a repository
func IsInitialized(root string) bool {
	info, err := os.Stat(filepath.Join(root, DirName))
	return err == nil && info.IsDir()
}

// Open restores the repository stored under root
func Open(root string, cfg *config.Config, logger *logging.Logger) (*Session, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var opts badger.Options
	if cfg.Database.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if !IsInitialized(absPath) {
			return nil, fmt.Errorf("not a qvcs repository: %s (run qvcs init)", absPath)
		}
		dbPath := cfg.Database.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(absPath, dbPath)
		}
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Disable logging noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	codec, err := storage.NewCodec(storage.CompressionOptions{
		MinSize: cfg.Compression.MinSize,
		Level:   cfg.Compression.Level,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing compression: %w", err)
	}

	store, err := qstorage.NewStore(db, cfg.CacheSize, storage.WithCodec(codec))
	if err != nil {
		db.Close()
		return nil, err
	}

	snap, err := store.Load()
	if err != nil {
		db.Close()
		return nil, err
	}
	repo, err := quantum.Restore(snap,
		quantum.WithDrawer(quantum.NewSeededDrawer(cfg.Seed)),
		quantum.WithLogger(logger.Component("quantum")),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restoring repository: %w", err)
	}

	logger.Debug("opened repository",
		zap.String("root", absPath),
		zap.Int("commits", len(snap.Commits)),
		zap.Int("heads", len(snap.Heads)))

	return &Session{
		Root:   absPath,
		Config: cfg,
		Repo:   repo,
		Store:  store,
		Logger: logger,
		db:     db,
	}, nil
}

// Save persists the current state of the repository
func (s *Session) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.Store.Save(s.Repo.Snapshot())
}

func (s *Session) Close() error {
	return s.db.Close()
}

// Merger builds a merger from the configured policy, with extra per-path
// overrides on top
func (s *Session) Merger(overrides map[string]string) (*merge.Merger, error) {
	all := maps.Clone(s.Config.Merge.Overrides)
	if all == nil {
		all = make(map[string]string, len(overrides))
	}
	maps.Copy(all, overrides)

	policy, err := merge.ParsePolicy(s.Config.Merge.Default, all)
	if err != nil {
		return nil, err
	}
	return merge.NewMerger(policy, merge.WithLogger(s.Logger.Component("merge"))), nil
}

// Tracker returns a tracker over the working tree
func (s *Session) Tracker() *watch.Tracker {
	return watch.NewTracker(s.Root, s.Repo, s.Logger.Component("watch"))
}
