// Package cache stores named revisions of entity graphs in a badger
// database, so that later exports can be compared against them.
package cache

import (
	bin "encoding/binary"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/cache/binary"
	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/log"
)

var (
	NotFound    = errors.New("not found")
	InvalidName = errors.New("invalid revision name")
)

const (
	revisionPrefix = "r/"
	elementPrefix  = "e/"

	nodeType     byte = 'n'
	wayType      byte = 'w'
	relationType byte = 'r'
)

// Revision describes a stored graph.
type Revision struct {
	Name      string
	Source    string
	Created   time.Time
	Nodes     int
	Ways      int
	Relations int
}

type Store struct {
	dir string
	db  *badger.DB
}

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = newBadgerLogger()
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache %s", dir)
	}
	return &Store{dir: dir, db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return errors.Wrapf(InvalidName, "%q", name)
	}
	return nil
}

func revisionKey(name string) []byte {
	return []byte(revisionPrefix + name)
}

func elementsPrefix(name string) []byte {
	return []byte(elementPrefix + name + "/")
}

func elementKey(name string, typ byte, id int64) []byte {
	prefix := elementsPrefix(name)
	key := make([]byte, len(prefix)+9)
	copy(key, prefix)
	key[len(prefix)] = typ
	bin.BigEndian.PutUint64(key[len(prefix)+1:], uint64(id))
	return key
}

// Put stores g as revision name. An existing revision with the same name is
// replaced.
func (s *Store) Put(name, source string, g *element.Graph) (*Revision, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := s.Delete(name); err != nil && errors.Cause(err) != NotFound {
		return nil, err
	}

	b := newWriteBatch(s.db)
	defer b.Discard()

	for id, n := range g.Nodes {
		data, err := binary.MarshalNode(n)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling node %d", id)
		}
		if err := b.Set(elementKey(name, nodeType, id), data); err != nil {
			return nil, errors.Wrapf(err, "storing node %d", id)
		}
	}
	for id, w := range g.Ways {
		data, err := binary.MarshalWay(w)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling way %d", id)
		}
		if err := b.Set(elementKey(name, wayType, id), data); err != nil {
			return nil, errors.Wrapf(err, "storing way %d", id)
		}
	}
	for id, r := range g.Relations {
		data, err := binary.MarshalRelation(r)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling relation %d", id)
		}
		if err := b.Set(elementKey(name, relationType, id), data); err != nil {
			return nil, errors.Wrapf(err, "storing relation %d", id)
		}
	}

	rev := &Revision{
		Name:      name,
		Source:    source,
		Created:   time.Now().UTC().Truncate(time.Second),
		Nodes:     len(g.Nodes),
		Ways:      len(g.Ways),
		Relations: len(g.Relations),
	}
	data, err := binary.MarshalRevision(&binary.Revision{
		Name:      rev.Name,
		Source:    rev.Source,
		Created:   rev.Created.Unix(),
		Nodes:     int64(rev.Nodes),
		Ways:      int64(rev.Ways),
		Relations: int64(rev.Relations),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling revision")
	}
	// the revision key is written last and deleted first
	if err := b.Set(revisionKey(name), data); err != nil {
		return nil, errors.Wrap(err, "storing revision")
	}
	if err := b.Commit(); err != nil {
		return nil, errors.Wrapf(err, "committing revision %s", name)
	}
	log.Printf("[info] stored revision %s with %s nodes, %s ways and %s relations",
		name, log.Count(rev.Nodes), log.Count(rev.Ways), log.Count(rev.Relations))
	return rev, nil
}

// Revision returns the description of revision name.
func (s *Store) Revision(name string) (*Revision, error) {
	var rev *Revision
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(revisionKey(name))
		if err == badger.ErrKeyNotFound {
			return errors.Wrapf(NotFound, "revision %s", name)
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rev, err = unmarshalRevision(data)
		return err
	})
	return rev, err
}

// Load returns the graph of revision name.
func (s *Store) Load(name string) (*element.Graph, *Revision, error) {
	rev, err := s.Revision(name)
	if err != nil {
		return nil, nil, err
	}

	g := element.NewGraph()
	prefix := elementsPrefix(name)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			switch key[len(prefix)] {
			case nodeType:
				n, err := binary.UnmarshalNode(data)
				if err != nil {
					return errors.Wrap(err, "unmarshaling node")
				}
				g.AddNode(n)
			case wayType:
				w, err := binary.UnmarshalWay(data)
				if err != nil {
					return errors.Wrap(err, "unmarshaling way")
				}
				g.AddWay(w)
			case relationType:
				r, err := binary.UnmarshalRelation(data)
				if err != nil {
					return errors.Wrap(err, "unmarshaling relation")
				}
				g.AddRelation(r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading revision %s", name)
	}
	return g, rev, nil
}

// List returns all revisions, sorted by name.
func (s *Store) List() ([]*Revision, error) {
	var revs []*Revision
	prefix := []byte(revisionPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rev, err := unmarshalRevision(data)
			if err != nil {
				return err
			}
			revs = append(revs, rev)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing revisions")
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].Name < revs[j].Name })
	return revs, nil
}

// Delete removes revision name and all its elements.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	var keys [][]byte
	prefix := elementsPrefix(name)
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(revisionKey(name)); err == nil {
			found = true
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "deleting revision %s", name)
	}
	if !found && len(keys) == 0 {
		return errors.Wrapf(NotFound, "revision %s", name)
	}

	b := newWriteBatch(s.db)
	defer b.Discard()
	if err := b.Delete(revisionKey(name)); err != nil {
		return errors.Wrapf(err, "deleting revision %s", name)
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return errors.Wrapf(err, "deleting revision %s", name)
		}
	}
	if err := b.Commit(); err != nil {
		return errors.Wrapf(err, "deleting revision %s", name)
	}
	return nil
}

func unmarshalRevision(data []byte) (*Revision, error) {
	r, err := binary.UnmarshalRevision(data)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling revision")
	}
	return &Revision{
		Name:      r.Name,
		Source:    r.Source,
		Created:   time.Unix(r.Created, 0).UTC(),
		Nodes:     int(r.Nodes),
		Ways:      int(r.Ways),
		Relations: int(r.Relations),
	}, nil
}
