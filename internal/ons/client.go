// Package ons fetches proposed generation schedules from the grid operator's
// integration API.
package ons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/gendash/internal/httputil"
	"github.com/lox/gendash/internal/metrics"
	"github.com/lox/gendash/internal/models"
	"github.com/lox/gendash/internal/slots"
)

const (
	DefaultBaseURL = "https://integra.ons.org.br/api"
	DefaultPlant   = "N2UHTP"

	AuthEndpoint     = "autenticar"
	ProposalEndpoint = "programacao/usina/ListarGeracaoProposta"
)

var (
	// ErrNoDataYet means the operator answered but every value is zero, which
	// is how an unpublished schedule looks.
	ErrNoDataYet = errors.New("scheduled generation not yet available")
	// ErrNoRecords means the plant came back without any schedule entries.
	ErrNoRecords = errors.New("no scheduled generation records")
	// ErrNoCredentials is returned before any request when username or password is unset.
	ErrNoCredentials = errors.New("ONS credentials not configured")
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	plant      string
	maxElapsed time.Duration
}

func NewClient(baseURL, username, password, plant string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if plant == "" {
		plant = DefaultPlant
	}
	return &Client{
		httpClient: httputil.NewClient(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		plant:      plant,
		maxElapsed: 2 * time.Minute,
	}
}

// SetMaxElapsed bounds the total retry time of a single call.
func (c *Client) SetMaxElapsed(d time.Duration) {
	c.maxElapsed = d
}

// FetchResult describes the proposal request for the import audit trail.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	Body         []byte
}

type authRequest struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
}

type proposalRequest struct {
	Ano           int      `json:"Ano"`
	Mes           int      `json:"Mes"`
	Dia           int      `json:"Dia"`
	CodigosUsinas []string `json:"CodigosUsinas"`
}

type proposalResponse struct {
	Usinas []struct {
		DadoInsumoPatamar []struct {
			PatamarHora     string    `json:"PatamarHora"`
			PatamarValorSUP flexFloat `json:"PatamarValor_SUP"`
		} `json:"DadoInsumoPatamar"`
	} `json:"Usinas"`
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return fmt.Errorf("parse value %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// FetchScheduled authenticates and returns the plant's proposed schedule for
// date. Each upstream slot is moved to the end of its half-hour, so "23:30"
// becomes "24:00".
func (c *Client) FetchScheduled(ctx context.Context, date time.Time) ([]models.ScheduledValue, *FetchResult, error) {
	result := &FetchResult{}
	if c.username == "" || c.password == "" {
		return nil, result, ErrNoCredentials
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, result, fmt.Errorf("authenticate: %w", err)
	}

	body, status, err := c.post(ctx, ProposalEndpoint, token, proposalRequest{
		Ano:           date.Year(),
		Mes:           int(date.Month()),
		Dia:           date.Day(),
		CodigosUsinas: []string{c.plant},
	})
	result.HTTPStatus = status
	result.ResponseSize = len(body)
	result.Body = body
	if err != nil {
		return nil, result, err
	}

	values, err := parseProposal(body)
	result.RecordCount = len(values)
	if err != nil {
		return nil, result, err
	}
	return values, result, nil
}

func parseProposal(body []byte) ([]models.ScheduledValue, error) {
	var data proposalResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal proposal: %w", err)
	}
	if len(data.Usinas) == 0 {
		return nil, fmt.Errorf("proposal response has no plant data")
	}

	entries := data.Usinas[0].DadoInsumoPatamar
	if len(entries) == 0 {
		return nil, ErrNoRecords
	}

	values := make([]models.ScheduledValue, 0, len(entries))
	allZero := true
	for _, e := range entries {
		label, err := slots.Shift(strings.TrimSpace(e.PatamarHora))
		if err != nil {
			return nil, fmt.Errorf("proposal slot %q: %w", e.PatamarHora, err)
		}
		v := float64(e.PatamarValorSUP)
		if v != 0 {
			allZero = false
		}
		values = append(values, models.ScheduledValue{Time: label, Scheduled: v})
	}
	if allZero {
		return nil, ErrNoDataYet
	}
	return values, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	body, _, err := c.post(ctx, AuthEndpoint, "", authRequest{Usuario: c.username, Senha: c.password})
	if err != nil {
		return "", err
	}
	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("unmarshal token: %w", err)
	}
	if auth.AccessToken == "" {
		return "", fmt.Errorf("no access_token in response")
	}
	return auth.AccessToken, nil
}

// post sends a JSON request, retrying transport errors, 429 and 5xx.
func (c *Client) post(ctx context.Context, endpoint, token string, payload any) ([]byte, int, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	url := c.baseURL + "/" + endpoint

	var (
		body   []byte
		status int
	)
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		metrics.ONSAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ONSAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		metrics.ONSAPICallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: read body: %w", endpoint, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(b)}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(b)})
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, status, err
	}
	return body, status, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
