package openai

import (
	"fmt"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "key_elements": {
      "type": "array",
      "items": {
        "type": "string",
        "pattern": "^[a-z0-9]+([ -][a-z0-9]+)*$"
      }
    }
  },
  "required": ["key_elements"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the key elements of the given text and return them as JSON.

A key element is a short tag naming a capability facet: a subject area, an
action, a data source or a quality such as freshness. Tags are used to match a
request against registered tools, knowledge sources and database tables.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Tags must be lowercase, 1-2 words, singular form. Join compound words with a hyphen.
- Return at most %d tags, most important first.
- Include only facets explicitly mentioned or clearly implied by the text. Do not hallucinate.
- If no key elements can be identified, return "key_elements": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "check the weather right now"
Output:
{"key_elements":["weather","real-time"]}

Example:
Input: "where is my package, it has not arrived"
Output:
{"key_elements":["order","tracking","shipping"]}

Example:
Input: "how many customers signed up last month"
Output:
{"key_elements":["customer","signup","analytics"]}`

// buildSystemPrompt creates the system prompt with the schema and tag cap embedded.
func buildSystemPrompt(maxElements int) string {
	return fmt.Sprintf(extractionPromptTemplate, extractionResponseSchema, maxElements)
}
