package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/models"
)

func splitChunks(t *testing.T, content string, maxChars, overlapChars int) []string {
	t.Helper()
	got, err := chunkContent(content, maxChars, overlapChars)
	require.NoError(t, err)
	return got
}

func TestChunkContent_Short(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, splitChunks(t, "  hello world \n", 100, 10))
	assert.Empty(t, splitChunks(t, "   ", 100, 10))
	assert.Empty(t, splitChunks(t, "text", 0, 0))
}

func TestChunkContent_RespectsMaxAndCoversText(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	content := strings.Join(words, " ")

	got := splitChunks(t, content, 100, 20)
	require.Greater(t, len(got), 1)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), 100)
		assert.NotEmpty(t, c)
	}
	assert.True(t, strings.HasPrefix(content, got[0]))
	assert.True(t, strings.HasSuffix(content, got[len(got)-1]))
}

func TestChunkContent_Overlap(t *testing.T) {
	content := strings.Repeat("abcdefghij", 5) // 50 chars, no break points
	got := splitChunks(t, content, 20, 5)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, content[:20], got[0])
	assert.Equal(t, content[15:35], got[1])
}

func TestChunkContent_OverlapLargerThanSize(t *testing.T) {
	got := splitChunks(t, strings.Repeat("x", 30), 10, 50)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestChunkContent_MultiByteCharacters(t *testing.T) {
	content := strings.Repeat("temperature°C", 200)

	got := splitChunks(t, content, 1000, 50)
	require.Greater(t, len(got), 1)
	for _, c := range got {
		assert.True(t, utf8.ValidString(c), "chunk is not valid UTF-8")
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
	assert.True(t, strings.HasPrefix(content, got[0]))
	assert.True(t, strings.HasSuffix(content, got[len(got)-1]))
}

func TestChunkContent_BreaksOnLines(t *testing.T) {
	content := "Salinity was 35 PSU at 10 µm filtration.\nSamples were frozen at -80 °C."
	got := splitChunks(t, content, 45, 5)
	assert.Equal(t, []string{
		"Salinity was 35 PSU at 10 µm filtration.",
		"Samples were frozen at -80 °C.",
	}, got)
}

func TestMarkdownToText(t *testing.T) {
	src := []byte("# Sampling sites\n\nWater from the *surface* layer.\n\n- site one\n- site two\n\n```\ncode line\n```\n")
	got := markdownToText(src)

	assert.Contains(t, got, "Sampling sites")
	assert.Contains(t, got, "Water from the surface layer.")
	assert.Contains(t, got, "site one")
	assert.Contains(t, got, "site two")
	assert.Contains(t, got, "code line")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "```")
}

func TestParseDocument_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("Depth was measured. ", 20)), 0o644))

	chunks, err := ParseDocument(path, Options{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.ChunkID)
		assert.Equal(t, 1, c.PageNumber)
	}
}

func TestParseDocument_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("## Title\n\nBody text."), 0o644))

	chunks, err := ParseDocument(path, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Body text.")
}

func TestParseDocument_Unsupported(t *testing.T) {
	_, err := ParseDocument("image.png", Options{})
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestIsDocument(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.DOCX", "c.md", "d.markdown", "e.txt"} {
		assert.True(t, IsDocument(name), name)
	}
	for _, name := range []string{"a.csv", "b.xlsx", "c", "d.png"} {
		assert.False(t, IsDocument(name), name)
	}
}
