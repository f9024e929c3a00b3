// internal/quantum/storage/store.go
package storage

import (
	stderrors "errors"
	"fmt"

	"qvcs/internal/errors"
	"qvcs/internal/quantum"
	"qvcs/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store persists repository snapshots. Each part of the aggregate lives
// under its own key prefix and a Save replaces all of them atomically.
type Store struct {
	db      *badger.DB
	commits *storage.BadgerStore
	heads   *storage.BadgerStore
	edges   *storage.BadgerStore
	index   *storage.BadgerStore
	cache   *lru.Cache[uuid.UUID, *quantum.Commit]
}

func NewStore(db *badger.DB, cacheSize int, opts ...storage.Option) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[uuid.UUID, *quantum.Commit](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating commit cache: %w", err)
	}

	return &Store{
		db:      db,
		commits: storage.NewBadgerStore(db, "commit", opts...),
		heads:   storage.NewBadgerStore(db, "head", opts...),
		edges:   storage.NewBadgerStore(db, "edge", opts...),
		index:   storage.NewBadgerStore(db, "index", opts...),
		cache:   cache,
	}, nil
}

// commitEntity wraps quantum.Commit to implement storage.Entity
type commitEntity struct {
	*quantum.Commit
}

func (c *commitEntity) GetID() string {
	return c.ID.String()
}

type headEntity struct {
	Branch string    `json:"branch"`
	Commit uuid.UUID `json:"commit"`
}

func (h *headEntity) GetID() string {
	return h.Branch
}

// edgeEntity keys edges by insertion position so a prefix scan returns
// them in the order they were added
type edgeEntity struct {
	Seq int `json:"seq"`
	quantum.Edge
}

func (e *edgeEntity) GetID() string {
	return fmt.Sprintf("%012d", e.Seq)
}

type indexEntity struct {
	Path    string      `json:"path"`
	Commits []uuid.UUID `json:"commits"`
}

func (i *indexEntity) GetID() string {
	return i.Path
}

// Save replaces whatever was stored with snap
func (s *Store) Save(snap quantum.Snapshot) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, bs := range []*storage.BadgerStore{s.commits, s.heads, s.edges, s.index} {
			if err := bs.ClearTxn(txn); err != nil {
				return err
			}
		}

		for _, c := range snap.Commits {
			if err := s.commits.PutTxn(txn, &commitEntity{Commit: c}); err != nil {
				return fmt.Errorf("storing commit %s: %w", c.ID, err)
			}
		}
		for branch, id := range snap.Heads {
			if err := s.heads.PutTxn(txn, &headEntity{Branch: branch, Commit: id}); err != nil {
				return fmt.Errorf("storing head %s: %w", branch, err)
			}
		}
		for i, e := range snap.Edges {
			if err := s.edges.PutTxn(txn, &edgeEntity{Seq: i, Edge: e}); err != nil {
				return fmt.Errorf("storing edge %d: %w", i, err)
			}
		}
		for path, ids := range snap.Index {
			if err := s.index.PutTxn(txn, &indexEntity{Path: path, Commits: ids}); err != nil {
				return fmt.Errorf("storing index %s: %w", path, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	s.cache.Purge()
	return nil
}

// Load reads back the last saved snapshot. An empty database yields an
// empty snapshot.
func (s *Store) Load() (quantum.Snapshot, error) {
	snap := quantum.Snapshot{
		Heads: make(map[string]uuid.UUID),
		Index: make(map[string][]uuid.UUID),
	}

	var commits []commitEntity
	if err := s.commits.List(&commits); err != nil {
		return snap, fmt.Errorf("loading commits: %w", err)
	}
	for _, c := range commits {
		snap.Commits = append(snap.Commits, c.Commit)
	}

	var heads []headEntity
	if err := s.heads.List(&heads); err != nil {
		return snap, fmt.Errorf("loading heads: %w", err)
	}
	for _, h := range heads {
		snap.Heads[h.Branch] = h.Commit
	}

	var edges []edgeEntity
	if err := s.edges.List(&edges); err != nil {
		return snap, fmt.Errorf("loading edges: %w", err)
	}
	for _, e := range edges {
		snap.Edges = append(snap.Edges, e.Edge)
	}

	var index []indexEntity
	if err := s.index.List(&index); err != nil {
		return snap, fmt.Errorf("loading index: %w", err)
	}
	for _, i := range index {
		snap.Index[i.Path] = i.Commits
	}

	return snap, nil
}

// GetCommit reads a single stored commit without loading the whole snapshot
func (s *Store) GetCommit(id uuid.UUID) (*quantum.Commit, error) {
	if c, ok := s.cache.Get(id); ok {
		return c.Clone(), nil
	}

	entity := commitEntity{Commit: &quantum.Commit{}}
	if err := s.commits.Get(id.String(), &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.CommitNotFound(id.String())
		}
		return nil, fmt.Errorf("getting commit: %w", err)
	}

	s.cache.Add(id, entity.Commit)
	return entity.Commit.Clone(), nil
}
