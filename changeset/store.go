package changeset

import (
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/cache"
	"github.com/omniscale/aixmdiff/reader"
)

// StoreRevision reads source and stores it as revision name in the cache of
// opts, so that it can be used as cache:name in later comparisons.
func StoreRevision(source, name string, opts reader.Options) (*cache.Revision, []error, error) {
	if opts.CacheDir == "" {
		return nil, nil, errors.New("missing cache dir")
	}
	g, errs, err := reader.Read(source, opts)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(opts.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	rev, err := store.Put(name, source, g)
	if err != nil {
		return nil, nil, err
	}
	logErrors(errs)
	return rev, errs, nil
}

// Revisions returns all revisions of the cache in cacheDir.
func Revisions(cacheDir string) ([]*cache.Revision, error) {
	store, err := cache.Open(cacheDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.List()
}

// RemoveRevision deletes revision name from the cache in cacheDir.
func RemoveRevision(cacheDir, name string) error {
	store, err := cache.Open(cacheDir)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Delete(name)
}
