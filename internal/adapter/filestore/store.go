// Package filestore keeps catalogs and reports in a directory of an afero
// filesystem.
package filestore

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Store implements repository.ObjectStore on a directory.
type Store struct {
	fs      afero.Fs
	dir     string
	baseURL string
}

// New returns a store rooted at dir. When baseURL is set, links point below
// it; otherwise they are file paths.
func New(fs afero.Fs, dir, baseURL string) *Store {
	return &Store{fs: fs, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: read %s", name)
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exists, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: stat %s", s.dir)
	}
	if !exists {
		return nil, nil
	}
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: list %s", s.dir)
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasPrefix(fi.Name(), prefix) {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrapf(err, "filestore: create %s", s.dir)
	}
	if err := afero.WriteReader(s.fs, s.path(name), r); err != nil {
		return eris.Wrapf(err, "filestore: write %s", name)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(s.path(name)); err != nil {
		return eris.Wrapf(err, "filestore: delete %s", name)
	}
	return nil
}

func (s *Store) Link(name string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + url.PathEscape(filepath.Base(name))
	}
	return s.path(name)
}
