package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"pmccentre.com/pmc-assistant/internal/config"
	"pmccentre.com/pmc-assistant/internal/store"
)

const systemInstruction = "You are a highly knowledgeable technical consultant specializing in Paper Machine Clothing (PMC). " +
	"Your expertise covers Forming fabrics, Press Felts, and Dryer fabrics. " +
	"Your primary goal is to provide accurate, helpful guidance to paper makers and PMC manufacturers. " +
	"When answering, prioritize information from pmccentre.com and pmccentre.com/blog. " +
	"You may also use other highly reputable technical websites. " +
	"ALWAYS cite your sources at the end of your response using the provided grounding information. " +
	"Format the response in Markdown."

// ApologyText is appended verbatim as the model message whenever a
// completion fails. The send itself still succeeds.
const ApologyText = "Sorry, I encountered an error while processing your request. Please check your API key and try again."

var (
	// ErrInvalidCredential means the API key was rejected; the credential
	// needs re-authentication, not a retry.
	ErrInvalidCredential = errors.New("completion credential invalid")
	// ErrCompletionFailed covers every other transport or model failure.
	ErrCompletionFailed = errors.New("completion failed")
)

// Turn is one prior exchange turn passed to the model as history.
type Turn struct {
	Role string
	Text string
}

// Completion is the normalized model response.
type Completion struct {
	Text      string
	Citations []store.Citation
}

// Completer sends a prompt plus history to a generative model. The returned
// payload is always usable: on failure it carries the apology text and no
// citations, and the error exists only for logging and credential
// classification.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []Turn) (*Completion, error)
}

// Gateway is the stateless Gemini adapter. Web search grounding is enabled on
// every request; grounding chunks become citations.
type Gateway struct {
	client *genai.Client
	model  string
}

func NewGateway(ctx context.Context) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.AppConfig.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gateway{
		client: client,
		model:  config.AppConfig.GeminiModel,
	}, nil
}

func (g *Gateway) Complete(ctx context.Context, prompt string, history []Turn) (*Completion, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		contents = append(contents, &genai.Content{
			Role:  t.Role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  store.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	})

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return apology(), classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Println("Gemini response was empty or had no valid candidates/parts.")
		return apology(), fmt.Errorf("%w: empty response", ErrCompletionFailed)
	}

	candidate := resp.Candidates[0]
	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		responseText.WriteString(part.Text)
	}
	if responseText.Len() == 0 {
		log.Println("Gemini response contained no text parts.")
		return apology(), fmt.Errorf("%w: non-text response", ErrCompletionFailed)
	}

	return &Completion{
		Text:      responseText.String(),
		Citations: extractCitations(candidate),
	}, nil
}

func apology() *Completion {
	return &Completion{Text: ApologyText}
}

// extractCitations maps the candidate's web grounding chunks to citations,
// dropping entries missing a URI or title.
func extractCitations(candidate *genai.Candidate) []store.Citation {
	if candidate.GroundingMetadata == nil {
		return nil
	}
	var citations []store.Citation
	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		citations = append(citations, store.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return dedupeCitations(citations)
}

// dedupeCitations removes duplicate URIs, keeping the first occurrence.
func dedupeCitations(citations []store.Citation) []store.Citation {
	if len(citations) == 0 {
		return citations
	}
	seen := make(map[string]bool, len(citations))
	unique := citations[:0]
	for _, c := range citations {
		if seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		unique = append(unique, c)
	}
	return unique
}

// classifyError separates a rejected API key, which needs the credential
// re-authenticated, from ordinary completion failures.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
			strings.Contains(apiErr.Message, "API key not valid") ||
			strings.Contains(apiErr.Message, "Requested entity was not found") {
			return fmt.Errorf("%w: %s", ErrInvalidCredential, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
}
