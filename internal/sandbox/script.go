package sandbox

import (
	"fmt"
	"strings"
)

const (
	// EntryScript is the file name of the generated program.
	EntryScript = "main.py"
	// QueryFile holds the SQL query read by the bridge.
	QueryFile = "query.sql"
)

// StagedDataset is a dataset as the generated program sees it.
type StagedDataset struct {
	Name string
	// File is relative to the data directory.
	File string
}

// The generated program reaches its modules only through underscore aliases.
// pd and np are rebound for user code, which may shadow them freely.
const preamble = `import json as _json
import os as _os
import sys as _sys

import numpy as _np
import pandas as _pd

pd = _pd
np = _np

_DATA_DIR = _os.environ.get("ANALYTICS_DATA_DIR", "data")


def _load_dataset(_path):
    _ext = _os.path.splitext(_path)[1].lower()
    if _ext == ".json":
        try:
            return _pd.read_json(_path)
        except ValueError:
            return _pd.read_json(_path, lines=True)
    if _ext == ".jsonl":
        return _pd.read_json(_path, lines=True)
    if _ext == ".parquet":
        return _pd.read_parquet(_path)
    if _ext in (".xlsx", ".xls"):
        return _pd.read_excel(_path)
    if _ext == ".tsv":
        return _pd.read_csv(_path, sep="\t")
    return _pd.read_csv(_path)

`

const loadTemplate = `try:
    %[1]s = _load_dataset(_os.path.join(_DATA_DIR, %[2]s))
    print("Loaded %[1]s with shape:", %[1]s.shape)
except Exception as _e:
    print("Could not load %[1]s:", str(_e))
    %[1]s = None

`

const sqlBridgeTemplate = `import sqlite3 as _sqlite3

_conn = _sqlite3.connect(":memory:")
for _name in %s:
    _frame = globals().get(_name)
    if not isinstance(_frame, _pd.DataFrame):
        continue
    try:
        _frame.to_sql(_name, _conn, if_exists="replace", index=False)
    except Exception as _e:
        print("Could not load %%s into SQLite: %%s" %% (_name, _e))
with open(_os.path.join(_os.environ.get("ANALYTICS_WORK_DIR", "."), "query.sql"), encoding="utf-8") as _f:
    _query = _f.read()
print("Executing SQL query:")
print(_query)
ans_df = _pd.read_sql_query(_query, _conn)
_conn.close()
`

const epilogue = `

def _write_result():
    _frame = globals().get("ans_df")
    _name = "ans_df"
    _auto = False
    if isinstance(_frame, _pd.Series):
        _frame = _frame.to_frame()
    elif _frame is not None and not isinstance(_frame, _pd.DataFrame):
        _frame = _pd.DataFrame({"ans_df": [_frame]})
    if _frame is None:
        _candidates = [
            _n for _n, _v in list(globals().items())
            if isinstance(_v, _pd.DataFrame) and not _n.startswith("_")
        ]
        if _candidates:
            _name = _candidates[-1]
            _frame = globals()[_name]
            _auto = True
    with open(_os.environ["ANALYTICS_RESULT_PATH"], "w", encoding="utf-8") as _out:
        if _frame is None:
            _json.dump({"found": False, "name": None, "auto_selected": False, "records": []}, _out)
            return
        _out.write('{"found": true, "name": ')
        _out.write(_json.dumps(_name))
        _out.write(', "auto_selected": ')
        _out.write("true" if _auto else "false")
        _out.write(', "records": ')
        _out.write(_frame.to_json(orient="records", date_format="iso"))
        _out.write("}")


_write_result()
`

// BuildScript assembles the program: dataset loading, then the user's python
// code or the SQL bridge, then the result epilogue.
func BuildScript(language string, datasets []StagedDataset, code string) string {
	var b strings.Builder
	b.WriteString(preamble)

	for _, d := range datasets {
		fmt.Fprintf(&b, loadTemplate, d.Name, pyString(d.File))
	}

	if language == "sql" {
		names := make([]string, len(datasets))
		for i, d := range datasets {
			names[i] = pyString(d.Name)
		}
		fmt.Fprintf(&b, sqlBridgeTemplate, "["+strings.Join(names, ", ")+"]")
	} else {
		b.WriteString("# analysis\n")
		b.WriteString(code)
		if !strings.HasSuffix(code, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString(epilogue)
	return b.String()
}

// pyString quotes s as a Python string literal.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
