package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"pmccentre.com/pmc-assistant/internal/store"
)

func TestDedupeCitations_FirstOccurrenceWins(t *testing.T) {
	citations := []store.Citation{
		{URI: "https://pmccentre.com/blog/x", Title: "Dryer Fabrics 101"},
		{URI: "https://pmccentre.com/blog/y", Title: "Press Felts"},
		{URI: "https://pmccentre.com/blog/x", Title: "A Different Title"},
	}

	unique := dedupeCitations(citations)
	require.Len(t, unique, 2)
	require.Equal(t, "Dryer Fabrics 101", unique[0].Title)
	require.Equal(t, "https://pmccentre.com/blog/y", unique[1].URI)
}

func TestDedupeCitations_Empty(t *testing.T) {
	require.Empty(t, dedupeCitations(nil))
}

func TestExtractCitations(t *testing.T) {
	candidate := &genai.Candidate{
		GroundingMetadata: &genai.GroundingMetadata{
			GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://pmccentre.com/blog/x", Title: "Dryer Fabrics 101"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://pmccentre.com/blog/x", Title: "Duplicate"}},
				{Web: &genai.GroundingChunkWeb{URI: "", Title: "No URI"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://example.com", Title: ""}},
				{}, // chunk without a web source
				{Web: &genai.GroundingChunkWeb{URI: "https://pmccentre.com/blog/y", Title: "Press Felts"}},
			},
		},
	}

	citations := extractCitations(candidate)
	require.Equal(t, []store.Citation{
		{URI: "https://pmccentre.com/blog/x", Title: "Dryer Fabrics 101"},
		{URI: "https://pmccentre.com/blog/y", Title: "Press Felts"},
	}, citations)
}

func TestExtractCitations_NoGrounding(t *testing.T) {
	require.Empty(t, extractCitations(&genai.Candidate{}))
}

func TestClassifyError(t *testing.T) {
	err := classifyError(genai.APIError{Code: 403, Message: "permission denied"})
	require.ErrorIs(t, err, ErrInvalidCredential)

	err = classifyError(genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."})
	require.ErrorIs(t, err, ErrInvalidCredential)

	err = classifyError(genai.APIError{Code: 404, Message: "Requested entity was not found."})
	require.ErrorIs(t, err, ErrInvalidCredential)

	err = classifyError(genai.APIError{Code: 500, Message: "internal"})
	require.ErrorIs(t, err, ErrCompletionFailed)

	err = classifyError(errors.New("connection refused"))
	require.ErrorIs(t, err, ErrCompletionFailed)
	require.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestApologyPayload(t *testing.T) {
	payload := apology()
	require.Equal(t, ApologyText, payload.Text)
	require.Empty(t, payload.Citations)
}
