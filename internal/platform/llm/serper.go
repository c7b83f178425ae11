package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	serperDefaultResults = 8
	serperBlockSeparator = "---"
)

// serper is a search backend: the prompt is the query, and the structured
// result is flattened into delimited text blocks.
type serper struct {
	transport
	baseURL string
	apiKey  string
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"organic"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (s *serper) Key() string    { return KeySerper }
func (s *serper) Searches() bool { return true }

func (s *serper) Generate(ctx context.Context, prompt string, opts Options) (GeneratedText, error) {
	query := strings.TrimSpace(prompt)
	if query == "" {
		return GeneratedText{}, s.payloadError("query required")
	}
	num := opts.MaxTokens
	if num <= 0 || num > 20 {
		num = serperDefaultResults
	}
	raw, err := s.postJSON(ctx, joinURL(s.baseURL, "/search"), map[string]string{"X-API-KEY": s.apiKey}, serperRequest{Q: query, Num: num}, "search")
	if err != nil {
		return GeneratedText{}, err
	}
	var resp serperResponse
	if err := s.decode(raw, &resp); err != nil {
		return GeneratedText{}, err
	}
	if resp.StatusCode >= 400 || (resp.Message != "" && len(resp.Organic) == 0 && resp.AnswerBox == nil) {
		return GeneratedText{}, s.payloadError(resp.Message)
	}
	return GeneratedText{Text: flattenSerper(resp)}, nil
}

func flattenSerper(resp serperResponse) string {
	blocks := []string{}
	if ab := resp.AnswerBox; ab != nil {
		answer := firstNonEmpty(ab.Answer, ab.Snippet)
		if answer != "" {
			blocks = append(blocks, fmt.Sprintf("Answer: %s\n%s", firstNonEmpty(ab.Title, "Answer"), answer))
		}
	}
	if kg := resp.KnowledgeGraph; kg != nil && strings.TrimSpace(kg.Description) != "" {
		blocks = append(blocks, fmt.Sprintf("Overview: %s\n%s", kg.Title, kg.Description))
	}
	for _, o := range resp.Organic {
		var b strings.Builder
		fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(o.Title))
		if o.Link != "" {
			fmt.Fprintf(&b, "Link: %s\n", strings.TrimSpace(o.Link))
		}
		if o.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", strings.TrimSpace(o.Date))
		}
		fmt.Fprintf(&b, "Snippet: %s", strings.TrimSpace(o.Snippet))
		blocks = append(blocks, b.String())
	}
	if len(blocks) == 0 {
		return "No results found."
	}
	return strings.Join(blocks, "\n"+serperBlockSeparator+"\n")
}
