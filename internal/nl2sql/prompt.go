package nl2sql

import (
	"strings"
)

const (
	QuerySystemPrompt = "You convert natural language analytics questions into a single DuckDB SQL query. " +
		"DuckDB uses PostgreSQL-like SQL syntax."
	AnalysisSystemPrompt = "You are a data analyst. Answer questions about query results concisely " +
		"and refer to the numbers you rely on."
)

const queryExample = `<reasoning>
The question asks for the five largest orders, so sort the orders table by amount in descending order and keep five rows.
</reasoning>
<answer>
SELECT id, customer_id, amount FROM orders ORDER BY amount DESC LIMIT 5;
</answer>`

const emptySchemaText = "(no tables)"

// BuildQueryPrompt asks the model for one SQL statement answering question
// against schema, using the <reasoning>/<answer> response format.
func BuildQueryPrompt(schema, question string) string {
	var b strings.Builder
	b.WriteString("Given the following DuckDB database schema:\n\n")
	b.WriteString(schemaText(schema))
	b.WriteString("\n\nWrite one SQL query that answers this question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use only the tables and columns listed above.\n")
	b.WriteString("- When the question is ambiguous, choose the most informative interpretation.\n")
	b.WriteString("- Add LIMIT 10 unless the question asks for a different number of rows.\n")
	b.WriteString("- If the question cannot be answered from this schema, explain why inside the reasoning block " +
		"and still answer with the closest exploratory query.\n")
	b.WriteString("\nThink step by step inside <reasoning></reasoning> tags. Then write exactly one " +
		"<answer></answer> block containing only the SQL statement, with no markdown.\n\n")
	b.WriteString("Example:\n")
	b.WriteString(queryExample)
	return b.String()
}

// BuildAnalysisPrompt embeds the rendered results and, for follow-ups, the
// conversation so far. An empty prior omits the conversation section.
func BuildAnalysisPrompt(schema, results, question, prior string) string {
	var b strings.Builder
	b.WriteString("Given the following database schema and query results:\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(schemaText(schema))
	b.WriteString("\n\nQuery results:\n")
	b.WriteString(strings.TrimRight(results, "\n"))
	if prior = strings.TrimSpace(prior); prior != "" {
		b.WriteString("\n\nPrevious conversation:\n")
		b.WriteString(prior)
	}
	b.WriteString("\n\nPlease answer this question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func schemaText(schema string) string {
	if strings.TrimSpace(schema) == "" {
		return emptySchemaText
	}
	return schema
}
