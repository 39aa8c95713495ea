// Package hypothesis produces a cause hypothesis and a suggested fix for
// each detected issue, plus a short commentary for funnel results. A
// language-model backend is used when configured; otherwise, or on any
// backend failure, built-in per-type fallbacks are returned. Generation
// never fails the caller.
package hypothesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"uxpulse/api/models"
)

const defaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

type Client struct {
	httpClient *http.Client
	endpoint   string
	folderID   string
	apiKey     string
}

// NewFromEnv builds a client from HYPOTHESIS_FOLDER_ID, HYPOTHESIS_API_KEY
// and optional HYPOTHESIS_ENDPOINT. Missing credentials leave the client in
// fallback-only mode.
func NewFromEnv() *Client {
	endpoint := os.Getenv("HYPOTHESIS_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		folderID:   os.Getenv("HYPOTHESIS_FOLDER_ID"),
		apiKey:     os.Getenv("HYPOTHESIS_API_KEY"),
	}
}

func (c *Client) enabled() bool {
	return c.folderID != "" && c.apiKey != ""
}

// Result is one generated hypothesis/fix pair.
type Result struct {
	Hypothesis string `json:"hypothesis"`
	Fix        string `json:"fix"`
}

// ForIssue generates the hypothesis and fix for one issue. Page context,
// when available, is included in the prompt.
func (c *Client) ForIssue(ctx context.Context, issue *models.UXIssue, page *models.PageMetrics) Result {
	if !c.enabled() {
		return fallbackFor(issue.IssueType)
	}

	prompt := issuePrompt(issue, page)
	text, err := c.complete(ctx, prompt)
	if err != nil {
		log.Printf("Hypothesis generation failed for %s at %s, using fallback: %v",
			issue.IssueType, issue.Location, err)
		return fallbackFor(issue.IssueType)
	}

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil || result.Hypothesis == "" {
		log.Printf("Hypothesis response for %s was not valid JSON, using fallback", issue.IssueType)
		return fallbackFor(issue.IssueType)
	}
	return result
}

// FunnelCommentary produces a one-paragraph reading of computed funnel
// metrics. Falls back to a templated summary.
func (c *Client) FunnelCommentary(ctx context.Context, funnel *models.ConversionFunnel, metrics *models.FunnelMetrics) string {
	fallback := fmt.Sprintf(
		"%d users entered the funnel %q and %d completed it (%.1f%% conversion). The largest drop-off is worth reviewing step by step.",
		metrics.TotalEntered, funnel.Name, metrics.TotalCompleted, metrics.OverallConversion,
	)
	if !c.enabled() {
		return fallback
	}

	prompt := funnelPrompt(funnel, metrics)
	text, err := c.complete(ctx, prompt)
	if err != nil {
		log.Printf("Funnel commentary generation failed for %q, using fallback: %v", funnel.Name, err)
		return fallback
	}
	return text
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := completionRequest{
		ModelURI:          fmt.Sprintf("gpt://%s/yandexgpt-lite", c.folderID),
		CompletionOptions: completionOptions{Temperature: 0.3, MaxTokens: 500},
		Messages: []message{
			{Role: "system", Text: "You are a UX analyst. Answer concisely in English."},
			{Role: "user", Text: prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", fmt.Errorf("completion response carried no alternatives")
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}

func issuePrompt(issue *models.UXIssue, page *models.PageMetrics) string {
	prompt := fmt.Sprintf(
		`A behavioral analysis of a website found a %s issue at %s affecting %d sessions (impact score %.1f). Detector summary: %s.`,
		issue.IssueType, issue.Location, issue.AffectedSessions, issue.ImpactScore, issue.Description,
	)
	if page != nil {
		prompt += fmt.Sprintf(
			" Page context: %d views, exit rate %.1f%%, avg time on page %.1fs.",
			page.TotalViews, page.ExitRate, page.AvgTimeOnPage,
		)
		if page.DominantCohort != "" {
			prompt += fmt.Sprintf(" Dominant visitor cohort: %s.", page.DominantCohort)
		}
	}
	prompt += ` Respond with JSON only: {"hypothesis": "...", "fix": "..."}.`
	return prompt
}

func funnelPrompt(funnel *models.ConversionFunnel, metrics *models.FunnelMetrics) string {
	steps, _ := json.Marshal(metrics.StepMetrics)
	return fmt.Sprintf(
		"Conversion funnel %q: %d entered, %d completed, %.1f%% overall conversion. Per-step metrics: %s. Write a two-sentence commentary on where and why users are lost.",
		funnel.Name, metrics.TotalEntered, metrics.TotalCompleted, metrics.OverallConversion, steps,
	)
}
