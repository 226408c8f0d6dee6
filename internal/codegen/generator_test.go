package codegen

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"analytics-ai/pkg/object_store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	out    string
	err    error
	prompt string
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestGeneratorCleansModelOutput(t *testing.T) {
	m := &fakeModel{out: "```python\nans_df = orders\n```"}
	g := NewGenerator(m, quietLogger())

	res := g.Generate(context.Background(), "q", LanguagePython, sampleDatasets())
	require.NoError(t, res.Err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "ans_df = orders", res.Code)
	assert.Contains(t, m.prompt, "`orders`")
}

func TestGeneratorFallsBackOnModelError(t *testing.T) {
	g := NewGenerator(&fakeModel{err: errors.New("rate limited")}, quietLogger())

	res := g.Generate(context.Background(), "q", LanguageSQL, sampleDatasets())
	assert.True(t, res.Fallback)
	assert.Error(t, res.Err)
	assert.Equal(t, "SELECT 'Error generating code: rate limited' AS error", res.Code)
}

func TestGeneratorWithoutModel(t *testing.T) {
	g := NewGenerator(nil, quietLogger())
	res := g.Generate(context.Background(), "q", LanguagePython, nil)
	assert.ErrorIs(t, res.Err, ErrNoModel)
	assert.Empty(t, res.Code)
	assert.False(t, res.Fallback)
}

func TestColumnResolver(t *testing.T) {
	ctx := context.Background()
	store := object_store.NewMemoryStore()
	store.CreateBucket("b")
	require.NoError(t, store.Put(ctx, "b", "orders.csv", "text/csv", []byte("id,total\n1,2.5\n2,3\n")))
	require.NoError(t, store.Put(ctx, "b", "events.json", "application/json", []byte(`[{"kind":"a","n":1}]`)))

	c := BuildContext([]SelectedFile{
		{Filename: "orders.csv", Source: "public", Bucket: "b"},
		{Filename: "events.json", Source: "public", Bucket: "b"},
		{Filename: "missing.csv", Source: "public", Bucket: "b"},
	}, "b")

	NewColumnResolver(store, 2, quietLogger()).Resolve(ctx, c)

	ds := c.Datasets()
	assert.Equal(t, []Column{{Name: "id", DType: "int64"}, {Name: "total", DType: "float64"}}, ds[0].Columns)
	assert.Equal(t, []Column{{Name: "kind", DType: "object"}, {Name: "n", DType: "int64"}}, ds[1].Columns)
	assert.Empty(t, ds[2].Columns)
}

func TestColumnResolverTruncatedSample(t *testing.T) {
	ctx := context.Background()
	store := object_store.NewMemoryStore()
	store.CreateBucket("b")

	wide := strings.Repeat("c", csvSampleBytes+10) + "\n1\n"
	require.NoError(t, store.Put(ctx, "b", "wide.csv", "text/csv", []byte(wide)))
	long := "id,note\n1," + strings.Repeat("x", csvSampleBytes) + "\n"
	require.NoError(t, store.Put(ctx, "b", "long.csv", "text/csv", []byte(long)))

	c := BuildContext([]SelectedFile{
		{Filename: "wide.csv", Source: "public", Bucket: "b"},
		{Filename: "long.csv", Source: "public", Bucket: "b"},
	}, "b")

	NewColumnResolver(store, 2, quietLogger()).Resolve(ctx, c)

	ds := c.Datasets()
	assert.Empty(t, ds[0].Columns)
	require.Len(t, ds[1].Columns, 2)
	assert.Equal(t, "id", ds[1].Columns[0].Name)
	assert.Equal(t, "note", ds[1].Columns[1].Name)
}
