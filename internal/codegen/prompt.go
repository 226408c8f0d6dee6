package codegen

import (
	"fmt"
	"strings"
)

// AutoDetectedColumns is shown when the columns of a dataset could not be read.
const AutoDetectedColumns = "Auto-detected from loaded data"

const pythonRules = `--- VERY STRICT RESPONSE RULES ---
1. Pay close attention to the data types. If a column is a string (object), you may need to convert it to a number before performing calculations.
2. Provide ONLY the raw python code.
3. You are strictly forbidden from writing ` + "`pd.read_csv`" + ` or creating your own DataFrames. You MUST use ONLY the provided dataframes.
4. Structure your code in logical steps. For each step, assign the result to a new DataFrame with a descriptive name.
5. The final variable containing the answer MUST be named ` + "`ans_df`" + `.
6. DO NOT include comments, explanations, or function definitions.
7. DO NOT visualize the data. Just produce the final ` + "`ans_df`" + `.
8. Use as few variables as possible and minimize empty lines.
9. ONLY use the dataframes that were explicitly provided in the context above.
10. WRITE CONCISE CODE: NO empty lines between related operations. Only use ONE empty line between major logical steps.`

const sqlRules = `--- VERY STRICT RESPONSE RULES ---
1. Provide ONLY the raw SQL query.
2. Use standard SQL syntax compatible with SQLite.
3. You are strictly forbidden from creating new tables or using external data sources.
4. Structure your query logically with proper JOINs, WHERE clauses, and GROUP BY as needed.
5. Use descriptive column aliases when needed.
6. DO NOT include comments, explanations, or multiple queries.
7. DO NOT use CREATE TABLE, INSERT, UPDATE, or DELETE statements.
8. Use as few subqueries as possible and write efficient queries.
9. ONLY use the tables that were explicitly provided in the context above.
10. WRITE CONCISE SQL: Use proper indentation and formatting.
11. FORMAT: Keep code compact - no unnecessary spacing or blank lines within logical blocks.`

// DescribeDatasets renders the dataset list embedded in the prompt.
func DescribeDatasets(language string, datasets []Dataset) string {
	label := "Name"
	if language == LanguageSQL {
		label = "Table"
	}

	var b strings.Builder
	for _, d := range datasets {
		fmt.Fprintf(&b, "- %s: `%s`\n", label, d.Identifier)
		fmt.Fprintf(&b, "  Description: Data file: %s\n", d.Filename)
		fmt.Fprintf(&b, "  Source: %s from bucket %s\n", d.Source, d.Bucket)
		fmt.Fprintf(&b, "  Columns: %s\n\n", describeColumns(d.Columns))
	}
	return b.String()
}

func describeColumns(columns []Column) string {
	if len(columns) == 0 {
		return AutoDetectedColumns
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		if c.DType == "" {
			parts[i] = c.Name
			continue
		}
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.DType)
	}
	return strings.Join(parts, ", ")
}

// BuildPrompt returns the instruction sent to the model.
func BuildPrompt(question, language string, datasets []Dataset) string {
	described := DescribeDatasets(language, datasets)

	if language == LanguageSQL {
		return fmt.Sprintf(`You are an expert SQL data analyst. A user wants to answer the question: "%s".

You have access to the following tables which are ALREADY LOADED into a SQLite database:
%s
IMPORTANT: You can ONLY use the tables listed above. All tables are available in the SQLite database.

Your task is to write a clean SQL query to produce the final result that answers the question.

%s
`, question, described, sqlRules)
	}

	return fmt.Sprintf(`You are an expert python data analyst. A user wants to answer the question: "%s".

You have access to ONLY the following dataframes which are ALREADY LOADED into memory:
%s
IMPORTANT: You can ONLY use the dataframes listed above. Do NOT create or reference any other data sources.

Your task is to write a short, clean python script to produce the final data table that answers the question.

%s
`, question, described, pythonRules)
}
