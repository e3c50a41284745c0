package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Pexels API endpoint and request defaults.
const (
	defaultPexelsBaseURL = "https://api.pexels.com"
	apiSearchPhotos      = "/v1/search"
	defaultOrientation   = "landscape"
	headerAuthorization  = "Authorization"
	pexelsTimeout        = 60 * time.Second

	filePermissions = 0o600
)

// Static errors.
var (
	ErrPexelsKeyMissing = errors.New("pexels api key is not configured")
	ErrQueryEmpty       = errors.New("search query cannot be empty")
)

// PexelsClient fetches stock photos from the Pexels API.
type PexelsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type pexelsSearchResponse struct {
	Photos []struct {
		Src struct {
			Large    string `json:"large"`
			Original string `json:"original"`
		} `json:"src"`
	} `json:"photos"`
}

// NewPexelsClient creates a client for the Pexels photo API. An empty baseURL
// selects the public endpoint; tests point it at a local server.
func NewPexelsClient(baseURL, apiKey string) (*PexelsClient, error) {
	if apiKey == "" {
		return nil, ErrPexelsKeyMissing
	}

	if baseURL == "" {
		baseURL = defaultPexelsBaseURL
	}

	return &PexelsClient{
		httpClient: &http.Client{Timeout: pexelsTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

// SearchPhotos returns download URLs for landscape photos matching the query,
// preferring the large rendition and falling back to the original.
func (c *PexelsClient) SearchPhotos(ctx context.Context, query string, perPage int) ([]string, error) {
	if query == "" {
		return nil, ErrQueryEmpty
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", defaultOrientation)

	requestURL := c.baseURL + apiSearchPhotos + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	req.Header.Set(headerAuthorization, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return nil, fmt.Errorf(
			"pexels search returned non-OK status: %s, body: %s",
			resp.Status, string(body),
		)
	}

	var payload pexelsSearchResponse

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pexels response: %w", err)
	}

	var photoURLs []string

	for _, photo := range payload.Photos {
		photoURL := photo.Src.Large
		if photoURL == "" {
			photoURL = photo.Src.Original
		}

		if photoURL != "" {
			photoURLs = append(photoURLs, photoURL)
		}
	}

	return photoURLs, nil
}

// DownloadPhoto fetches a photo and writes it to the destination path.
func (c *PexelsClient) DownloadPhoto(ctx context.Context, photoURL, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	req.Header.Set(headerAuthorization, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("photo download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("photo download returned non-OK status: %s", resp.Status)
	}

	photoData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read photo data: %w", err)
	}

	err = os.WriteFile(destination, photoData, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write photo to %q: %w", destination, err)
	}

	return nil
}
