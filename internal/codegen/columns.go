package codegen

import (
	"bytes"
	"context"
	"io"

	"analytics-ai/internal/table"
	"analytics-ai/internal/utils"
	"analytics-ai/pkg/object_store"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	csvSampleBytes = 64 << 10
	jsonMaxBytes   = 4 << 20
	jsonSampleRows = 50
)

// ColumnResolver reads the start of each dataset to list its columns in the prompt.
type ColumnResolver struct {
	store       object_store.Store
	concurrency int
	log         logrus.FieldLogger
}

// NewColumnResolver creates a resolver that reads at most concurrency objects at once.
func NewColumnResolver(store object_store.Store, concurrency int, log logrus.FieldLogger) *ColumnResolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &ColumnResolver{store: store, concurrency: concurrency, log: log}
}

// Resolve fills the columns of every dataset in c it can read. Failures are
// logged and leave the dataset without columns.
func (r *ColumnResolver) Resolve(ctx context.Context, c *Context) {
	datasets := c.Datasets()
	results := make([][]Column, len(datasets))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, d := range datasets {
		g.Go(func() error {
			cols, err := r.columnsOf(ctx, d)
			if err != nil {
				r.log.WithError(err).WithFields(logrus.Fields{
					"bucket": d.Bucket,
					"file":   d.Filename,
				}).Debug("column detection skipped")
				return nil
			}
			results[i] = cols
			return nil
		})
	}
	_ = g.Wait()

	for i, d := range datasets {
		if len(results[i]) > 0 {
			c.SetColumns(d.Identifier, results[i])
		}
	}
}

func (r *ColumnResolver) columnsOf(ctx context.Context, d Dataset) ([]Column, error) {
	rc, err := r.store.Open(ctx, d.Bucket, d.Filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	switch utils.FileExtension(d.Filename) {
	case "json":
		data, err := io.ReadAll(io.LimitReader(rc, jsonMaxBytes+1))
		if err != nil {
			return nil, err
		}
		if len(data) > jsonMaxBytes {
			return nil, nil
		}
		value, err := table.Decode(data)
		if err != nil {
			return nil, err
		}
		items, ok := value.([]interface{})
		if !ok {
			return nil, nil
		}
		if len(items) > jsonSampleRows {
			items = items[:jsonSampleRows]
		}
		return fromColumnInfo(utils.FrameFromJSON(items).Columns), nil
	default:
		data, err := io.ReadAll(io.LimitReader(rc, csvSampleBytes+1))
		if err != nil {
			return nil, err
		}
		if len(data) > csvSampleBytes {
			// drop the partial last line; a header that never ends gives no columns
			i := bytes.LastIndexByte(data[:csvSampleBytes], '\n')
			if i < 0 {
				return nil, nil
			}
			data = data[:i+1]
		}
		frame, err := utils.ParseCSVFrame(data)
		if err != nil {
			return nil, err
		}
		return fromColumnInfo(frame.Columns), nil
	}
}

func fromColumnInfo(info []utils.ColumnInfo) []Column {
	cols := make([]Column, len(info))
	for i, ci := range info {
		cols[i] = Column{Name: ci.Name, DType: ci.DType}
	}
	return cols
}
