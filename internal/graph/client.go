package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/config"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/otel"
)

const (
	graphScope = "https://graph.microsoft.com/.default"

	// DueDateLayout is the UTC, second precision, Z-suffixed format of task due dates.
	DueDateLayout = "2006-01-02T15:04:05Z"

	defaultMaxPages = 10
	errorBodyLimit  = 64 << 10
)

// Client talks to the Microsoft Graph mail, folder and To Do endpoints.
// Every call is synchronous and returns an error for non-2xx responses.
type Client struct {
	baseURL     string
	mailboxPath string
	creds       *clientcredentials.Config
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	maxPages    int
	logger      *zap.Logger
}

func NewClient(cfg config.GraphConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	mailboxPath := "/me"
	if cfg.MailboxUser != "" {
		mailboxPath = "/users/" + url.PathEscape(cfg.MailboxUser)
	}

	cbCfg := circuitbreaker.DefaultConfig()
	cbCfg.IsFailure = countsAsFailure
	cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Graph circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		mailboxPath: mailboxPath,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(cfg.AuthURL, "/"), cfg.TenantID),
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker:  circuitbreaker.NewCircuitBreaker(cbCfg),
		maxPages: defaultMaxPages,
		logger:   logger,
	}
}

// WithMaxPages caps how many @odata.nextLink pages one unread listing follows.
func (c *Client) WithMaxPages(n int) *Client {
	if n > 0 {
		c.maxPages = n
	}
	return c
}

// Authenticate fetches a fresh app-only access token. Tokens are not cached.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	ctx, span := otel.StartSpan(ctx, "graph.authenticate")
	defer span.End()

	start := time.Now()
	var tok *oauth2.Token
	err := c.breaker.Execute(func() error {
		var err error
		tok, err = c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
		return err
	})
	metrics.RecordGraphCallLatency("authenticate", statusLabel(err), time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("graph authenticate: %w", err)
	}
	return tok.AccessToken, nil
}

// ListUnreadInbox returns the unread Inbox messages in the order Graph
// lists them, following nextLink for at most maxPages pages.
func (c *Client) ListUnreadInbox(ctx context.Context, token string) ([]model.Message, error) {
	q := url.Values{}
	q.Set("$filter", "isRead eq false")
	q.Set("$select", "id,subject,from,bodyPreview")
	next := c.mailboxURL("/mailFolders/inbox/messages") + "?" + q.Encode()

	var messages []model.Message
	for page := 0; next != "" && page < c.maxPages; page++ {
		var resp messagePage
		if err := c.do(ctx, "list_unread", http.MethodGet, next, token, nil, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Value {
			messages = append(messages, m.toModel())
		}
		next = resp.NextLink
	}

	if next != "" {
		c.logger.Warn("Unread listing truncated at page cap",
			zap.Int("max_pages", c.maxPages),
			zap.Int("fetched", len(messages)),
		)
	}
	return messages, nil
}

// ListChildFolders returns every child folder of parentID.
func (c *Client) ListChildFolders(ctx context.Context, token, parentID string) ([]model.Folder, error) {
	next := c.mailboxURL("/mailFolders/"+url.PathEscape(parentID)+"/childFolders") + "?$top=100"

	var folders []model.Folder
	for next != "" {
		var resp folderPage
		if err := c.do(ctx, "list_child_folders", http.MethodGet, next, token, nil, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.Value {
			folders = append(folders, model.Folder{ID: f.ID, DisplayName: f.DisplayName})
		}
		next = resp.NextLink
	}
	return folders, nil
}

// CreateChildFolder creates name under parentID and returns the new id.
func (c *Client) CreateChildFolder(ctx context.Context, token, parentID, name string) (string, error) {
	endpoint := c.mailboxURL("/mailFolders/" + url.PathEscape(parentID) + "/childFolders")

	var resp idResponse
	if err := c.do(ctx, "create_folder", http.MethodPost, endpoint, token, createFolderRequest{DisplayName: name}, &resp); err != nil {
		return "", err
	}
	c.logger.Info("Folder created", zap.String("name", name), zap.String("parent_id", parentID))
	return resp.ID, nil
}

// MoveMessage moves messageID into destinationID.
func (c *Client) MoveMessage(ctx context.Context, token, messageID, destinationID string) error {
	endpoint := c.mailboxURL("/messages/" + url.PathEscape(messageID) + "/move")
	if err := c.do(ctx, "move_message", http.MethodPost, endpoint, token, moveRequest{DestinationID: destinationID}, nil); err != nil {
		return err
	}
	c.logger.Info("Message moved", zap.String("message_id", messageID), zap.String("folder_id", destinationID))
	return nil
}

// CreateTask adds a task to the first (default) To Do list.
func (c *Client) CreateTask(ctx context.Context, token, title, body string, due time.Time) error {
	var lists todoListPage
	if err := c.do(ctx, "list_todo_lists", http.MethodGet, c.mailboxURL("/todo/lists"), token, nil, &lists); err != nil {
		return err
	}
	if len(lists.Value) == 0 {
		return errors.New("graph create task: no To Do list available")
	}

	endpoint := c.mailboxURL("/todo/lists/" + url.PathEscape(lists.Value[0].ID) + "/tasks")
	req := createTaskRequest{
		Title: title,
		Body:  taskBody{Content: body, ContentType: "text"},
		DueDateTime: dateTimeTimeZone{
			DateTime: due.UTC().Format(DueDateLayout),
			TimeZone: "UTC",
		},
	}
	if err := c.do(ctx, "create_task", http.MethodPost, endpoint, token, req, nil); err != nil {
		return err
	}
	c.logger.Info("To Do task created", zap.String("title", title))
	return nil
}

// BreakerState reports the circuit breaker state ("closed", "open" or
// "half_open").
func (c *Client) BreakerState() string {
	return c.breaker.GetState().String()
}

func (c *Client) mailboxURL(path string) string {
	return c.baseURL + c.mailboxPath + path
}

// do sends one request through the circuit breaker and decodes the JSON
// response into out when out is not nil.
func (c *Client) do(ctx context.Context, op, method, endpoint, token string, body, out any) error {
	ctx, span := otel.StartSpan(ctx, "graph."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.request.method", method))

	start := time.Now()
	err := c.breaker.Execute(func() error {
		return c.send(ctx, op, method, endpoint, token, body, out)
	})
	metrics.RecordGraphCallLatency(op, statusLabel(err), time.Since(start))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, endpoint, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("graph %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("graph %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph %s: decode response: %w", op, err)
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var body graphErrorBody
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}
	return "error"
}
