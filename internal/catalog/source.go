package catalog

import (
	"context"

	"github.com/spf13/afero"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
)

// Source loads the catalog of a run from its configured location.
type Source struct {
	fs     afero.Fs
	path   string
	store  repository.ObjectStore
	object string
	loader *Loader
}

// NewSource reads path from fs when path is set, otherwise object from store.
func NewSource(fs afero.Fs, path string, store repository.ObjectStore, object string, loader *Loader) *Source {
	return &Source{fs: fs, path: path, store: store, object: object, loader: loader}
}

func (s *Source) Load(ctx context.Context) ([]entity.ProductRecord, error) {
	data, err := Fetch(ctx, s.fs, s.path, s.store, s.object)
	if err != nil {
		return nil, err
	}
	return s.loader.Parse(data)
}
