package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/logging"
)

// pdsResponse is the subset of the demographics payload this service
// consumes. Everything else in the upstream response is ignored.
type pdsResponse struct {
	GivenNames  []string `json:"givenNames"`
	FamilyName  string   `json:"familyName"`
	DateOfBirth string   `json:"dateOfBirth"`
}

// PDSClient is a thin HTTP adapter over the demographics service. A 404 is a
// definitive absence (ErrPatientNotFound); every other failure mode is
// classified transient.
type PDSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ Demographics = (*PDSClient)(nil)

// NewPDSClient creates a demographics client for the given base URL.
func NewPDSClient(baseURL, apiKey string) *PDSClient {
	return &PDSClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *PDSClient) Lookup(ctx context.Context, nhsNumber string) (*Details, error) {
	url := c.baseURL + "/patients/" + nhsNumber

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build demographics request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Transient("demographics lookup", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPatientNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, Transient("demographics lookup",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload pdsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, Transient("demographics response decode", err)
	}

	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(nhsNumber)).
		Dur("elapsed", time.Since(start)).
		Msg("Demographics record fetched")

	return &Details{
		GivenNames:  payload.GivenNames,
		FamilyName:  payload.FamilyName,
		DateOfBirth: payload.DateOfBirth,
	}, nil
}
