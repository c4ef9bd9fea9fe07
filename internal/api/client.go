package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clinicdesk/internal/models"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the backend REST contract. All authenticated requests carry
// the bearer credential from TokenSource. Mutating requests are never retried;
// the queue read path retries with backoff, except on 4xx.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenSource    func() string
	onUnauthorized func()
	readRetries    uint
}

type Options struct {
	BaseURL     string
	TokenSource func() string
	// OnUnauthorized fires when an authenticated request comes back 401/403.
	// Such responses are never retried; the hook is the logout trigger.
	OnUnauthorized func()
	HTTPClient     *http.Client
	ReadRetries    int
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	tokenSource := opts.TokenSource
	if tokenSource == nil {
		tokenSource = func() string { return "" }
	}
	retries := uint(3)
	if opts.ReadRetries > 0 {
		retries = uint(opts.ReadRetries)
	}
	return &Client{
		baseURL:        opts.BaseURL,
		httpClient:     httpClient,
		tokenSource:    tokenSource,
		onUnauthorized: opts.OnUnauthorized,
		readRetries:    retries,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	token := c.tokenSource()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeAPIError(resp)
		if token != "" && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// GetQueue fetches the active queue. Transient failures are retried with
// exponential backoff; any 4xx is permanent.
func (c *Client) GetQueue(ctx context.Context) ([]models.Visit, error) {
	operation := func() ([]models.Visit, error) {
		var visits []models.Visit
		if err := c.do(ctx, http.MethodGet, "/queue", nil, &visits); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return visits, nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 250 * time.Millisecond
	return backoff.Retry(ctx, operation, backoff.WithBackOff(expo), backoff.WithMaxTries(c.readRetries))
}

func (c *Client) CreateVisit(ctx context.Context, req models.CreateVisitRequest) (models.Visit, error) {
	var visit models.Visit
	err := c.do(ctx, http.MethodPost, "/visits", req, &visit)
	return visit, err
}

func (c *Client) CallPatient(ctx context.Context, visitID string) (models.Visit, error) {
	var visit models.Visit
	err := c.do(ctx, http.MethodPost, "/queue/"+visitID+"/call", nil, &visit)
	return visit, err
}

func (c *Client) StartConsultation(ctx context.Context, visitID string) (models.Visit, error) {
	var visit models.Visit
	err := c.do(ctx, http.MethodPost, "/queue/"+visitID+"/start", nil, &visit)
	return visit, err
}

func (c *Client) FinishConsultation(ctx context.Context, visitID, notes string) (models.Visit, error) {
	var visit models.Visit
	err := c.do(ctx, http.MethodPost, "/queue/"+visitID+"/finish", models.FinishVisitRequest{Notes: notes}, &visit)
	return visit, err
}

func (c *Client) SkipPatient(ctx context.Context, visitID string) (models.Visit, error) {
	var visit models.Visit
	err := c.do(ctx, http.MethodPost, "/queue/"+visitID+"/skip", nil, &visit)
	return visit, err
}

func (c *Client) CancelVisit(ctx context.Context, visitID string) error {
	return c.do(ctx, http.MethodDelete, "/queue/"+visitID, nil, nil)
}

func (c *Client) ListPatients(ctx context.Context, filters models.PatientFilters) (models.PatientPage, error) {
	query := url.Values{}
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}
	if filters.Page > 0 {
		query.Set("page", strconv.Itoa(filters.Page))
	}
	if filters.Limit > 0 {
		query.Set("limit", strconv.Itoa(filters.Limit))
	}
	path := "/patients"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page models.PatientPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) GetPatient(ctx context.Context, patientID string) (models.Patient, error) {
	var patient models.Patient
	err := c.do(ctx, http.MethodGet, "/patients/"+patientID, nil, &patient)
	return patient, err
}

func (c *Client) CreatePatient(ctx context.Context, req models.CreatePatientRequest) (models.Patient, error) {
	var patient models.Patient
	err := c.do(ctx, http.MethodPost, "/patients", req, &patient)
	return patient, err
}

func (c *Client) UpdatePatient(ctx context.Context, patientID string, req models.CreatePatientRequest) (models.Patient, error) {
	var patient models.Patient
	err := c.do(ctx, http.MethodPut, "/patients/"+patientID, req, &patient)
	return patient, err
}

func (c *Client) DeletePatient(ctx context.Context, patientID string) error {
	return c.do(ctx, http.MethodDelete, "/patients/"+patientID, nil, nil)
}

func (c *Client) PatientHistory(ctx context.Context, patientID string) ([]models.Visit, error) {
	var visits []models.Visit
	err := c.do(ctx, http.MethodGet, "/patients/"+patientID+"/visits", nil, &visits)
	return visits, err
}

func (c *Client) DailyStats(ctx context.Context, date string) (models.DailyStats, error) {
	path := "/stats/daily"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var stats models.DailyStats
	err := c.do(ctx, http.MethodGet, path, nil, &stats)
	return stats, err
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.do(ctx, http.MethodGet, "/users", nil, &users)
	return users, err
}
