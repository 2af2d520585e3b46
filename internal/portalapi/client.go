package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wardbook/portalsync/pkg/logging"
)

const (
	defaultTimeout = 20 * time.Second
	dateLayout     = "2006-01-02"
)

// StatusError reports a non-2xx response from the portal API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portalapi: status %d: %s", e.Code, e.Body)
}

// Client is a REST client for the hospital portal API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a portal API client. A zero timeout falls back to the
// package default.
func NewClient(baseURL, token string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ListAdmissions returns patients with their embedded admission records
// published inside the given window. Zero times omit the bound.
func (c *Client) ListAdmissions(ctx context.Context, from, to time.Time) ([]Patient, error) {
	var out []Patient
	if err := c.do(ctx, http.MethodGet, "/patients/admissions", windowQuery(from, to), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAppointments returns patients with their embedded appointment records
// published inside the given window.
func (c *Client) ListAppointments(ctx context.Context, from, to time.Time) ([]Patient, error) {
	var out []Patient
	if err := c.do(ctx, http.MethodGet, "/patients/appointments", windowQuery(from, to), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSessionUser returns the profile of the staff member owning the bearer token.
func (c *Client) GetSessionUser(ctx context.Context) (*StaffProfile, error) {
	var out StaffProfile
	if err := c.do(ctx, http.MethodGet, "/accounts/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAdmission admits a patient to a ward.
func (c *Client) CreateAdmission(ctx context.Context, req CreateAdmissionRequest) (*CreatedRecord, error) {
	if strings.TrimSpace(req.PatientID) == "" {
		return nil, fmt.Errorf("portalapi: create admission: missing patient id")
	}
	var out CreatedRecord
	if err := c.do(ctx, http.MethodPost, "/admissions", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAdmission edits an admission's ward or reason.
func (c *Client) UpdateAdmission(ctx context.Context, admissionID string, req UpdateAdmissionRequest) error {
	return c.do(ctx, http.MethodPut, "/admissions/"+url.PathEscape(admissionID), nil, req, nil)
}

// DischargeAdmission closes an admission by setting its checkout date.
func (c *Client) DischargeAdmission(ctx context.Context, admissionID string, checkoutAt time.Time) error {
	body := map[string]string{"checkout_date": checkoutAt.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPut, "/admissions/"+url.PathEscape(admissionID)+"/discharge", nil, body, nil)
}

// DeleteAdmission removes an admission record.
func (c *Client) DeleteAdmission(ctx context.Context, admissionID string) error {
	return c.do(ctx, http.MethodDelete, "/admissions/"+url.PathEscape(admissionID), nil, nil, nil)
}

// CreateAppointment books an appointment with a doctor.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*CreatedRecord, error) {
	if strings.TrimSpace(req.PatientID) == "" {
		return nil, fmt.Errorf("portalapi: create appointment: missing patient id")
	}
	var out CreatedRecord
	if err := c.do(ctx, http.MethodPost, "/appointments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAppointment cancels an appointment.
func (c *Client) DeleteAppointment(ctx context.Context, appointmentID string) error {
	return c.do(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(appointmentID), nil, nil, nil)
}

func windowQuery(from, to time.Time) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(dateLayout))
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if strings.TrimSpace(c.baseURL) == "" {
		return fmt.Errorf("portalapi: missing base url")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("portalapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("portalapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portalapi: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("portalapi: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &StatusError{Code: resp.StatusCode, Body: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("portalapi: unmarshal response: %w", err)
	}
	return nil
}
