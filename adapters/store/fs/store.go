package storefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

const metaSuffix = ".meta.json"

// Store archives generated invoice files on disk. Each artifact has a JSON
// sidecar holding its metadata.
type Store struct {
	Root string
	Now  func() time.Time
}

var (
	_ invoice.ArtifactStore = (*Store)(nil)
	_ invoice.ArchivePruner = (*Store)(nil)
)

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put stores an artifact on disk. Writes go through a temp file and rename.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta invoice.ArtifactMeta) (invoice.ArtifactRef, error) {
	if err := s.check(ctx, key); err != nil {
		return invoice.ArtifactRef{}, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return invoice.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return invoice.ArtifactRef{}, err
	}

	tmp, err := os.CreateTemp(dir, ".invoice-*")
	if err != nil {
		return invoice.ArtifactRef{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return invoice.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return invoice.ArtifactRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return invoice.ArtifactRef{}, err
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return invoice.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(pathOnDisk)
	}

	if err := writeMeta(pathOnDisk, meta); err != nil {
		return invoice.ArtifactRef{}, err
	}
	return invoice.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, invoice.ArtifactMeta, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, invoice.ArtifactMeta{}, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, invoice.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, invoice.ArtifactMeta{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, invoice.ArtifactMeta{}, err
	}

	meta := readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes an artifact and its metadata.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(pathOnDisk + metaSuffix)
	return nil
}

// Prune deletes artifacts created before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil {
		return 0, invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return 0, invoice.NewError(invoice.KindValidation, "store root is required", nil)
	}

	removed := 0
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, ".") {
			return nil
		}

		created := readMeta(p).CreatedAt
		if created.IsZero() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			created = info.ModTime()
		}
		if !created.Before(before) {
			return nil
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		_ = os.Remove(p + metaSuffix)
		removed++
		return nil
	})
	return removed, err
}

func (s *Store) check(ctx context.Context, key string) error {
	if s == nil {
		return invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Root == "" {
		return invoice.NewError(invoice.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return invoice.NewError(invoice.KindValidation, "artifact key is required", nil)
	}
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." || strings.HasSuffix(rel, metaSuffix) {
		return "", invoice.NewError(invoice.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", invoice.NewError(invoice.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func writeMeta(pathOnDisk string, meta invoice.ArtifactMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(pathOnDisk), ".meta-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), pathOnDisk+metaSuffix)
}

func readMeta(pathOnDisk string) invoice.ArtifactMeta {
	data, err := os.ReadFile(pathOnDisk + metaSuffix)
	if err != nil {
		return invoice.ArtifactMeta{}
	}
	var meta invoice.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return invoice.ArtifactMeta{}
	}
	return meta
}
