package models

const (
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`

	// UnknownValue is the only non-numeric value a reconstructed cell may hold.
	UnknownValue = "Unknown"

	DefaultMissingSentinel = "missing"
	DefaultDelimiter       = "__"
	ReasoningColumn        = "Reasoning"
)

// Metadata keys written by the ingestion step.
const (
	MetaFilename  = "filename"
	MetaSource    = "source"
	MetaTimestamp = "timestamp"
	MetaPage      = "page"
	MetaChunkID   = "chunk_id"
	MetaIndex     = "index"
)

var (
	// AnswerPromptTemplate takes the assembled context and the question, in that order.
	AnswerPromptTemplate = `Answer the question using ONLY the context provided:
---
Context: %s
---
Question: %s
`

	// ReconstructPromptTemplate takes the column name, the row's other fields,
	// the rule text and the delimiter three times.
	ReconstructPromptTemplate = `Fill the missing value for '%s'. Use the context of this row: %s

Rules:
%s

Think step by step if needed, but the final line of your answer must contain only the value wrapped in %s, like %svalue%s.
`

	DefaultReconstructionRules = `- If the sample description says "surface" or "shallow", the value is 0.0.
- If the sample was taken from an organism, from sediment or from feces, the value is Unknown.
- If the description names a depth zone (for example epipelagic, mesopelagic or bathypelagic), estimate a single number from general domain knowledge. Never answer with a range.
- Answer with a single number or the word Unknown.`
)
