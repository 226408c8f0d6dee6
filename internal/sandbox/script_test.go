package sandbox

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScriptPython(t *testing.T) {
	s := BuildScript("python", []StagedDataset{
		{Name: "orders", File: "orders.csv"},
		{Name: "races", File: "races.json"},
	}, "ans_df = orders.head()")

	iOrders := strings.Index(s, "orders = _load_dataset")
	iRaces := strings.Index(s, "races = _load_dataset")
	iCode := strings.Index(s, "ans_df = orders.head()")
	iEpilogue := strings.Index(s, "_write_result()")
	require.True(t, iOrders > 0 && iRaces > 0 && iCode > 0 && iEpilogue > 0)
	assert.Less(t, iOrders, iRaces)
	assert.Less(t, iRaces, iCode)
	assert.Less(t, iCode, iEpilogue)

	assert.Contains(t, s, "import pandas as _pd")
	assert.Contains(t, s, "pd = _pd\nnp = _np")
	assert.Contains(t, s, "_os.environ[\"ANALYTICS_RESULT_PATH\"]")
	assert.NotContains(t, s, "read_sql_query")
}

func TestBuildScriptSQLDoesNotEmbedQuery(t *testing.T) {
	s := BuildScript("sql", []StagedDataset{{Name: "orders", File: "orders.csv"}}, "SELECT '''; import os")

	assert.Contains(t, s, "import sqlite3 as _sqlite3")
	assert.Contains(t, s, `for _name in ["orders"]:`)
	assert.Contains(t, s, "ans_df = _pd.read_sql_query(_query, _conn)")
	assert.NotContains(t, s, "import os\n\n")
	assert.NotContains(t, s, "SELECT '''")
}

func TestBuildScriptInternalsUseAliasesOnly(t *testing.T) {
	datasets := []StagedDataset{
		{Name: "os", File: "os.csv"},
		{Name: "json", File: "json.csv"},
		{Name: "pd", File: "pd.csv"},
		{Name: "sales", File: "sales.csv"},
	}

	for _, language := range []string{"python", "sql"} {
		s := BuildScript(language, datasets, "ans_df = sales")

		// everything the program itself runs after the dataset loads must
		// avoid the bare module names a dataset may have rebound
		after := s[strings.Index(s, `sales = _load_dataset`):]
		bare := regexp.MustCompile(`(^|[^_A-Za-z0-9])(os|json|sys|pd|np|sqlite3)\.`)
		for _, line := range strings.Split(after, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "print(") || line == "ans_df = sales" {
				continue
			}
			assert.False(t, bare.MatchString(line), "%s: %q", language, line)
		}
		assert.Contains(t, s, `os = _load_dataset(_os.path.join(_DATA_DIR, "os.csv"))`)
	}
}

func TestParseEnvelope(t *testing.T) {
	res, err := parseEnvelope([]byte(`{"found": true, "name": "x", "auto_selected": true, "records": [{"k": null}]}`))
	require.NoError(t, err)
	assert.Equal(t, "x", res.Name)
	assert.True(t, res.AutoSelected)
	require.Len(t, res.Records, 1)

	_, err = parseEnvelope([]byte(`{"found": true, "records": {"a": 1}}`))
	assert.Equal(t, CauseParseFailure, causeOf(t, err))

	_, err = parseEnvelope([]byte(`not json`))
	assert.Equal(t, CauseParseFailure, causeOf(t, err))
}
