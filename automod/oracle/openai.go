package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alphababoon/alphababoon/util"

	"github.com/carlmjohnson/versioninfo"
)

const defaultHost = "https://api.openai.com"
const defaultModel = "omni-moderation-latest"

// OpenAIClient scores text with the OpenAI moderation endpoint.
type OpenAIClient struct {
	Client   *http.Client
	Host     string
	APIToken string
	Model    string
	Timeout  time.Duration
}

var _ Classifier = (*OpenAIClient)(nil)

func NewOpenAIClient(token string) *OpenAIClient {
	return &OpenAIClient{
		Client:   util.RobustHTTPClient(),
		Host:     defaultHost,
		APIToken: token,
		Model:    defaultModel,
		Timeout:  15 * time.Second,
	}
}

// schema: https://platform.openai.com/docs/api-reference/moderations
type moderationRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type moderationResponse struct {
	Results []moderationResult `json:"results"`
}

type moderationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

func (c *OpenAIClient) Classify(ctx context.Context, text string) (*Classification, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(moderationRequest{Input: text, Model: c.Model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("User-Agent", "alphababoon/"+versioninfo.Short())

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderation request failed, status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading moderation response: %w", err)
	}
	var mod moderationResponse
	if err := json.Unmarshal(raw, &mod); err != nil {
		return nil, fmt.Errorf("parsing moderation response: %w", err)
	}
	if len(mod.Results) == 0 {
		return nil, fmt.Errorf("empty moderation response")
	}

	return summarizeResult(mod.Results[0]), nil
}

// The API reports per-category probabilities in [0,1]; the pipeline works
// with a single 0-10 score, so take the strongest category and scale it.
func summarizeResult(res moderationResult) *Classification {
	var max float64
	for _, score := range res.CategoryScores {
		if score > max {
			max = score
		}
	}
	var cats []string
	for cat, hit := range res.Categories {
		if hit {
			cats = append(cats, cat)
		}
	}
	return &Classification{
		Score:      max * 10,
		Categories: cats,
	}
}

func (c *OpenAIClient) Probe(ctx context.Context) error {
	_, err := c.Classify(ctx, "healthcheck probe")
	return err
}
