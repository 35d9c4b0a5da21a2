package models

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
}

// ContentUnit is a unit of text plus the metadata it is filtered by.
// Ownership passes to the document store on Add.
type ContentUnit struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChatEntry is one question and its answer in a session's history.
type ChatEntry struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
