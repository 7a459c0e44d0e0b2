package api

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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/discussion-bot/models"
)

const (
	baseURL = "https://oauth.reddit.com"
	authURL = "https://www.reddit.com/api/v1/access_token"

	defaultMaxRequestsPerMinute = 100 // reddit's documented OAuth limit
)

var (
	// ErrAuthentication is returned when reddit rejects the bot's credentials
	ErrAuthentication = errors.New("reddit authentication failed")

	// ErrSubmissionNotFound is returned when a submission id no longer resolves to a post
	ErrSubmissionNotFound = errors.New("submission not found")
)

// APIError is a failed reddit API call
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// settingsRemap maps the keys returned by about/edit to the names site_admin expects
var settingsRemap = map[string]string{
	"content_options":   "link_type",
	"default_set":       "allow_top",
	"header_hover_text": "header-title",
	"language":          "lang",
	"subreddit_type":    "type",
}

// RedditAPI is an authenticated reddit client acting on behalf of a user account
type RedditAPI struct {
	clientID     string
	clientSecret string
	userAgent    string
	authURL      string
	baseURL      string
	httpClient   *http.Client
	accessToken  string
	mutex        sync.RWMutex
	log          *logrus.Logger
	rateLimiter  *rate.Limiter
}

// RedditPost represents the Reddit API response structure for a post
type RedditPost struct {
	Kind string `json:"kind"`
	Data struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Title     string `json:"title"`
		Subreddit string `json:"subreddit"`
		URL       string `json:"url"`
		Permalink string `json:"permalink"`
	} `json:"data"`
}

// RedditResponse represents the Reddit API listing structure
type RedditResponse struct {
	Kind string `json:"kind"`
	Data struct {
		Children []RedditPost `json:"children"`
	} `json:"data"`
}

// jsonEnvelope is what reddit returns for api_type=json calls
type jsonEnvelope struct {
	JSON struct {
		Errors [][]interface{}  `json:"errors"`
		Data   *json.RawMessage `json:"data"`
	} `json:"json"`
}

// NewRedditAPI creates a new Reddit API client
func NewRedditAPI(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = defaultMaxRequestsPerMinute
	}

	// 95% of the allowed rate, no burst
	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0 * 0.95

	return &RedditAPI{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		authURL:      authURL,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log,
		rateLimiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// SetEndpoints points the client at a different reddit deployment
func (r *RedditAPI) SetEndpoints(authEndpoint, apiBase string) {
	r.authURL = authEndpoint
	r.baseURL = strings.TrimRight(apiBase, "/")
}

// Authenticate logs in as username using the password grant
func (r *RedditAPI) Authenticate(ctx context.Context, username, password string) error {
	r.log.WithField("username", username).Info("Authenticating with Reddit API")

	if err := r.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	r.logRateLimits(resp)

	// 401 means the app credentials were rejected
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrAuthentication, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Endpoint: r.authURL, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
		Error       string `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	// a wrong username/password comes back as 200 {"error": "invalid_grant"}
	if authResp.Error != "" || authResp.AccessToken == "" {
		return fmt.Errorf("%w: %s", ErrAuthentication, authResp.Error)
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	r.mutex.Unlock()

	r.log.WithField("expires_in", authResp.ExpiresIn).Info("Successfully authenticated with Reddit API")
	return nil
}

// Submit creates a self post in subreddit and optionally saves it to the bot's account
func (r *RedditAPI) Submit(ctx context.Context, subreddit, title, text string, save bool) (*models.Submission, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("kind", "self")
	form.Set("sr", subreddit)
	form.Set("title", title)
	form.Set("text", text)
	form.Set("resubmit", "true")

	var envelope jsonEnvelope
	if err := r.do(ctx, http.MethodPost, "/api/submit", form, &envelope); err != nil {
		return nil, fmt.Errorf("failed to submit post to %s: %w", subreddit, err)
	}
	if err := envelopeError("/api/submit", &envelope); err != nil {
		return nil, err
	}
	if envelope.JSON.Data == nil {
		return nil, fmt.Errorf("submit response for %s carried no post data", subreddit)
	}

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(*envelope.JSON.Data, &created); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}

	submission := &models.Submission{
		ID:    created.ID,
		Name:  created.Name,
		Title: title,
		URL:   created.URL,
	}
	if submission.Name == "" {
		submission.Name = "t3_" + submission.ID
	}

	r.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"id":        submission.ID,
		"url":       submission.URL,
	}).Info("Submitted post")

	if save {
		if err := r.Save(ctx, submission.Name); err != nil {
			return nil, err
		}
	}

	return submission, nil
}

// Save bookmarks the thing with the given fullname on the bot's account
func (r *RedditAPI) Save(ctx context.Context, fullname string) error {
	form := url.Values{}
	form.Set("id", fullname)

	if err := r.do(ctx, http.MethodPost, "/api/save", form, nil); err != nil {
		return fmt.Errorf("failed to save %s: %w", fullname, err)
	}
	return nil
}

// GetSubmission fetches the current title and url of a submission by id
func (r *RedditAPI) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var listing RedditResponse
	endpoint := "/by_id/t3_" + url.PathEscape(id) + "?raw_json=1"
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &listing); err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", id, err)
	}

	if len(listing.Data.Children) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
	}

	post := listing.Data.Children[0].Data
	return &models.Submission{
		ID:    post.ID,
		Name:  post.Name,
		Title: post.Title,
		URL:   post.URL,
	}, nil
}

// GetSubredditSettings fetches the moderator-editable settings of subreddit
func (r *RedditAPI) GetSubredditSettings(ctx context.Context, subreddit string) (*models.SubredditSettings, error) {
	var resp struct {
		Kind string                 `json:"kind"`
		Data map[string]interface{} `json:"data"`
	}

	// raw_json stops reddit from html-escaping the description
	endpoint := "/r/" + url.PathEscape(subreddit) + "/about/edit?raw_json=1"
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch settings for %s: %w", subreddit, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("settings response for %s carried no data", subreddit)
	}

	description, _ := resp.Data["description"].(string)
	return &models.SubredditSettings{
		Description: description,
		Raw:         resp.Data,
	}, nil
}

// UpdateSubredditSettings writes settings back to subreddit.
// site_admin replaces every setting, so all values fetched earlier are sent along with the description.
func (r *RedditAPI) UpdateSubredditSettings(ctx context.Context, subreddit string, settings *models.SubredditSettings) error {
	form := settingsForm(settings)
	if form.Get("sr") == "" {
		return fmt.Errorf("settings for %s are missing the subreddit id", subreddit)
	}

	var envelope jsonEnvelope
	if err := r.do(ctx, http.MethodPost, "/api/site_admin", form, &envelope); err != nil {
		return fmt.Errorf("failed to update settings for %s: %w", subreddit, err)
	}
	if err := envelopeError("/api/site_admin", &envelope); err != nil {
		return err
	}

	r.log.WithField("subreddit", subreddit).Info("Updated subreddit settings")
	return nil
}

// settingsForm flattens settings into the form site_admin accepts
func settingsForm(settings *models.SubredditSettings) url.Values {
	form := url.Values{}

	keys := make([]string, 0, len(settings.Raw))
	for key := range settings.Raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := formValue(settings.Raw[key])
		if !ok {
			continue
		}

		switch key {
		case "subreddit_id":
			form.Set("sr", value)
		default:
			if renamed, exists := settingsRemap[key]; exists {
				key = renamed
			}
			form.Set(key, value)
		}
	}

	form.Set("description", settings.Description)
	form.Set("api_type", "json")
	return form
}

// formValue renders a scalar JSON value; objects, arrays and nulls are skipped
func formValue(v interface{}) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case bool:
		return strconv.FormatBool(value), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return "", false
	}
}

// envelopeError turns the errors array of an api_type=json response into an error
func envelopeError(endpoint string, envelope *jsonEnvelope) error {
	if len(envelope.JSON.Errors) == 0 {
		return nil
	}

	messages := make([]string, 0, len(envelope.JSON.Errors))
	for _, e := range envelope.JSON.Errors {
		parts := make([]string, 0, len(e))
		for _, part := range e {
			if part != nil {
				parts = append(parts, fmt.Sprint(part))
			}
		}
		messages = append(messages, strings.Join(parts, ": "))
	}

	return &APIError{
		Endpoint:   endpoint,
		StatusCode: http.StatusOK,
		Body:       strings.Join(messages, "; "),
	}
}

// do performs an authenticated request against the OAuth API and decodes the JSON response into out
func (r *RedditAPI) do(ctx context.Context, method, endpoint string, form url.Values, out interface{}) error {
	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	if token == "" {
		return fmt.Errorf("not authenticated")
	}

	if err := r.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	r.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("Calling Reddit API")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	r.logRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		r.log.WithFields(logrus.Fields{
			"endpoint":      endpoint,
			"response_body": string(respBody),
			"status_code":   resp.StatusCode,
		}).Error("Reddit API error response")

		// by_id answers 404 for ids that never existed
		if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(endpoint, "/by_id/") {
			return ErrSubmissionNotFound
		}
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// logRateLimits logs reddit's rate limit headers for debugging
func (r *RedditAPI) logRateLimits(resp *http.Response) {
	// X-Ratelimit-Used: Approximate number of requests used in this period
	// X-Ratelimit-Remaining: Approximate number of requests left to use
	// X-Ratelimit-Reset: Approximate number of seconds to end of period
	used := getHeaderAsInt(resp.Header, "X-Ratelimit-Used")
	remaining := getHeaderAsInt(resp.Header, "X-Ratelimit-Remaining")
	reset := getHeaderAsInt(resp.Header, "X-Ratelimit-Reset")

	if reset == 0 && used == 0 {
		return
	}

	r.log.WithFields(logrus.Fields{
		"used":      used,
		"remaining": remaining,
		"reset_sec": reset,
	}).Debug("Reddit rate limit status")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}
