// Package codegen builds the dataset context and LLM prompt for analysis code
// and normalises what the model returns.
package codegen

import (
	"strings"
	"unicode"

	"analytics-ai/internal/utils"
)

const (
	// LanguagePython selects pandas code bound to ans_df.
	LanguagePython = "python"
	// LanguageSQL selects a single SQLite query.
	LanguageSQL = "sql"

	// SourceUploaded marks files from the default bucket.
	SourceUploaded = "uploaded"
	// SourcePublic marks files from a public bucket.
	SourcePublic = "public"
)

// SelectedFile is a file picked by the user in the storage browser.
type SelectedFile struct {
	Filename string `json:"filename" binding:"required"`
	Source   string `json:"source,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
}

// Column is a resolved column name and dataframe dtype.
type Column struct {
	Name  string
	DType string
}

// Dataset is one named table available to generated code.
type Dataset struct {
	Identifier string
	Filename   string
	Bucket     string
	Source     string
	Columns    []Column
}

// Context is an ordered set of datasets keyed by identifier.
type Context struct {
	order []string
	byID  map[string]Dataset
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{byID: make(map[string]Dataset)}
}

// BuildContext maps selected files to datasets. Uploaded files (and files
// without a source) live in defaultBucket; others use their own bucket,
// falling back to defaultBucket.
func BuildContext(files []SelectedFile, defaultBucket string) *Context {
	c := NewContext()
	for _, f := range files {
		source := f.Source
		if source == "" {
			source = SourceUploaded
		}
		bucket := defaultBucket
		if source != SourceUploaded && f.Bucket != "" {
			bucket = f.Bucket
		}
		c.Put(Dataset{
			Identifier: Identifier(f.Filename),
			Filename:   f.Filename,
			Bucket:     bucket,
			Source:     source,
		})
	}
	return c
}

// Put adds d, replacing an existing dataset with the same identifier in place.
func (c *Context) Put(d Dataset) {
	if _, ok := c.byID[d.Identifier]; !ok {
		c.order = append(c.order, d.Identifier)
	}
	c.byID[d.Identifier] = d
}

// Has reports whether identifier is present.
func (c *Context) Has(identifier string) bool {
	_, ok := c.byID[identifier]
	return ok
}

// Len returns the number of datasets.
func (c *Context) Len() int {
	return len(c.order)
}

// Datasets returns the datasets in insertion order.
func (c *Context) Datasets() []Dataset {
	out := make([]Dataset, len(c.order))
	for i, id := range c.order {
		out[i] = c.byID[id]
	}
	return out
}

// SetColumns records resolved columns for identifier.
func (c *Context) SetColumns(identifier string, columns []Column) {
	d, ok := c.byID[identifier]
	if !ok {
		return
	}
	d.Columns = columns
	c.byID[identifier] = d
}

// Identifier derives a Python variable and SQL table name from a filename:
// the part before the first dot, non-alphanumerics replaced by "_", lower-cased.
// Names starting with a digit or "_", Python keywords and reserved names get a
// "df_" prefix.
func Identifier(filename string) string {
	base := filename
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	var b strings.Builder
	for _, r := range base {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte('_')
		}
	}
	id := b.String()

	switch {
	case id == "":
		return "data"
	case id[0] >= '0' && id[0] <= '9', id[0] == '_', utils.IsReservedName(id):
		return "df_" + id
	}
	return id
}
