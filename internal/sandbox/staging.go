package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"analytics-ai/pkg/object_store"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DatasetRef names an object to preload under Name.
type DatasetRef struct {
	Name   string
	Bucket string
	Object string
}

// Stager downloads dataset objects into a work directory.
type Stager struct {
	store       object_store.Store
	concurrency int
	log         logrus.FieldLogger
}

// NewStager creates a Stager running at most concurrency downloads at once.
func NewStager(store object_store.Store, concurrency int, log logrus.FieldLogger) *Stager {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Stager{store: store, concurrency: concurrency, log: log}
}

// Stage downloads every ref into dataDir. A failed download is logged and the
// file is left absent so the program binds that dataset to None. The returned
// slice has one entry per ref, in order.
func (s *Stager) Stage(ctx context.Context, dataDir string, refs []DatasetRef) ([]StagedDataset, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	staged := make([]StagedDataset, len(refs))
	for i, ref := range refs {
		staged[i] = StagedDataset{Name: ref.Name, File: ref.Name + datasetExt(ref.Object)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ref := range refs {
		dest := filepath.Join(dataDir, staged[i].File)
		g.Go(func() error {
			if err := s.download(gctx, ref, dest); err != nil {
				_ = os.Remove(dest)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.WithError(err).WithFields(logrus.Fields{
					"dataset": ref.Name,
					"bucket":  ref.Bucket,
					"object":  ref.Object,
				}).Warn("dataset staging failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return staged, nil
}

func (s *Stager) download(ctx context.Context, ref DatasetRef, dest string) error {
	rc, err := s.store.Open(ctx, ref.Bucket, ref.Object)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// datasetExt keeps the object's extension so the loader picks the right reader.
func datasetExt(object string) string {
	ext := strings.ToLower(path.Ext(object))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return ".csv"
	}
	return ext
}
