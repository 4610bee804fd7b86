package jotformsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stageworks/roster_backend/config"
	"golang.org/x/time/rate"
)

const jotformTimeLayout = "2006-01-02 15:04:05"

// SubmissionQuery narrows a submissions listing. Since, when set, becomes a created_at:gt filter.
type SubmissionQuery struct {
	Limit   int
	Offset  int
	Since   *time.Time
	OrderBy string
}

// SubmissionSource is what the importer needs from the form provider.
type SubmissionSource interface {
	ListSubmissions(ctx context.Context, formID string, q SubmissionQuery) ([]Submission, error)
}

type Client struct {
	baseURL   string
	apiKey    string
	pageLimit int
	http      *http.Client
	limiter   *rate.Limiter
}

func NewClient(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := config.StringFromEnv("JOTFORM_API_BASE_URL", "https://api.jotform.com")
	perMin := config.IntFromEnv("JOTFORM_RATE_LIMIT_PER_MIN", 60)
	if perMin <= 0 {
		perMin = 60
	}
	pageLimit := config.IntFromEnv("JOTFORM_PAGE_LIMIT", 1000)
	if pageLimit <= 0 {
		pageLimit = 1000
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    strings.TrimSpace(apiKey),
		pageLimit: pageLimit,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
	}, nil
}

// envelope is the {responseCode, message, content} wrapper around every Jotform response.
type envelope struct {
	ResponseCode int             `json:"responseCode"`
	Message      string          `json:"message"`
	Content      json.RawMessage `json:"content"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APIKEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jotform api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("jotform api: malformed response: %w", err)
	}
	if env.ResponseCode != 0 && env.ResponseCode != http.StatusOK {
		return nil, fmt.Errorf("jotform api error %d: %s", env.ResponseCode, env.Message)
	}
	if len(env.Content) == 0 || string(env.Content) == "null" {
		return nil, errors.New("jotform api: malformed response: missing content")
	}
	return env.Content, nil
}

func (c *Client) ListForms(ctx context.Context) ([]Form, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageLimit))
	content, err := c.get(ctx, "/user/forms", params)
	if err != nil {
		return nil, err
	}
	var forms []Form
	if err := json.Unmarshal(content, &forms); err != nil {
		return nil, fmt.Errorf("jotform api: malformed forms: %w", err)
	}
	return forms, nil
}

// ListQuestions returns the form's questions ordered as they appear on the form.
func (c *Client) ListQuestions(ctx context.Context, formID string) ([]Question, error) {
	content, err := c.get(ctx, "/form/"+url.PathEscape(formID)+"/questions", nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]rawQuestion
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("jotform api: malformed questions: %w", err)
	}
	questions := make([]Question, 0, len(raw))
	for key, r := range raw {
		questions = append(questions, r.toQuestion(key))
	}
	SortQuestions(questions)
	return questions, nil
}

// SortQuestions orders by form position, then numeric qid.
func SortQuestions(questions []Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		a, errA := strconv.Atoi(questions[i].QID)
		b, errB := strconv.Atoi(questions[j].QID)
		if errA == nil && errB == nil {
			return a < b
		}
		return questions[i].QID < questions[j].QID
	})
}

func (c *Client) ListSubmissions(ctx context.Context, formID string, q SubmissionQuery) ([]Submission, error) {
	limit := q.Limit
	if limit <= 0 || limit > c.pageLimit {
		limit = c.pageLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Since != nil {
		filter, _ := json.Marshal(map[string]string{
			"created_at:gt": q.Since.UTC().Format(jotformTimeLayout),
		})
		params.Set("filter", string(filter))
	}
	if q.OrderBy != "" {
		params.Set("orderby", q.OrderBy)
	}

	content, err := c.get(ctx, "/form/"+url.PathEscape(formID)+"/submissions", params)
	if err != nil {
		return nil, err
	}
	var raw []rawSubmission
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("jotform api: malformed submissions: %w", err)
	}
	subs := make([]Submission, 0, len(raw))
	for _, r := range raw {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}
