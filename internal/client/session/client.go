package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the typed API surface over the auth service. All requests
// flow through Transport, so bearer attachment and the one-shot
// refresh-and-retry apply uniformly; the cookie jar carries the
// httpOnly refresh cookie between calls.
type Client struct {
	baseURL   string
	http      *http.Client
	store     *Store
	refresher *Refresher
	gate      *Gate
}

func New(baseURL string, logger *logrus.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	store := NewStore()
	refresher := NewRefresher(baseURL, &http.Client{Jar: jar}, store, logger)

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar: jar,
			Transport: &Transport{
				Store:     store,
				Refresher: refresher,
			},
		},
		store:     store,
		refresher: refresher,
		gate:      NewGate(store, refresher),
	}, nil
}

func (c *Client) Store() *Store {
	return c.store
}

// Bootstrap runs the startup gate: one refresh attempt covering a
// returning user with a live refresh cookie.
func (c *Client) Bootstrap(ctx context.Context) bool {
	return c.gate.Open(ctx)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type PasswordReset struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type Loan struct {
	ID             string    `json:"id"`
	PrincipalCents int64     `json:"principal_cents"`
	BalanceCents   int64     `json:"balance_cents"`
	InterestBPS    int64     `json:"interest_bps"`
	Status         string    `json:"status"`
	DueDate        time.Time `json:"due_date"`
	CreatedAt      time.Time `json:"created_at"`
}

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	Loans     []Loan    `json:"loans"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) error {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.post(ctx, "/auth/login", creds, &body); err != nil {
		return err
	}
	c.store.SetAccessToken(body.AccessToken)
	return nil
}

func (c *Client) Register(ctx context.Context, reg Registration) error {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.post(ctx, "/auth/register", reg, &body); err != nil {
		return err
	}
	c.store.SetAccessToken(body.AccessToken)
	return nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.post(ctx, "/auth/forgot-password", payload, nil)
}

func (c *Client) ResetPassword(ctx context.Context, reset PasswordReset) error {
	return c.post(ctx, "/auth/reset-password", reset, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/auth/logout", nil, nil)
	c.store.Clear()
	return err
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &body.User, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// APIError carries the service's error payload back to UI code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	// A 401 here means the transport already spent its single retry;
	// UI code decides whether to redirect to login.
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: resp.Status}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Error.Code,
		Message:    body.Error.Message,
	}
}
