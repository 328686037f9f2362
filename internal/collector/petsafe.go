package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// PetSafeFetcher implements Fetcher against the PetSafe cloud API. Token
// acquisition is handled by the companion token tool; this only reads the
// token file it leaves behind.
type PetSafeFetcher struct {
	BaseURL   string
	TokenFile string
	Client    *http.Client
}

// NewPetSafeFetcher creates a fetcher with optional proxy support.
func NewPetSafeFetcher(baseURL, tokenFile, proxyURL string) *PetSafeFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &PetSafeFetcher{
		BaseURL:   baseURL,
		TokenFile: tokenFile,
		Client: &http.Client{
			Timeout:   20 * time.Second,
			Transport: transport,
		},
	}
}

func (f *PetSafeFetcher) Name() string { return "petsafe" }

type apiTokens struct {
	IDToken      string  `json:"id_token"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	Email        string  `json:"email"`
	TokenExpires float64 `json:"token_expires"`
}

func (f *PetSafeFetcher) loadTokens() (*apiTokens, error) {
	data, err := os.ReadFile(f.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var t apiTokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if t.IDToken == "" {
		return nil, fmt.Errorf("token file %s missing id_token", f.TokenFile)
	}
	if t.TokenExpires > 0 && float64(time.Now().Unix()) > t.TokenExpires {
		log.Printf("[WARN] tokens in %s look expired, API calls may fail", f.TokenFile)
	}
	return &t, nil
}

func (f *PetSafeFetcher) get(path string, out interface{}) error {
	t, err := f.loadTokens()
	if err != nil {
		return err
	}
	req, err := http.NewRequest("GET", f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", t.IDToken)

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// FetchFeeders returns the account's feeders with their live status.
func (f *PetSafeFetcher) FetchFeeders() ([]model.Feeder, error) {
	var feeders []model.Feeder
	if err := f.get("/smart-feed/feeders", &feeders); err != nil {
		return nil, err
	}
	return feeders, nil
}

// FetchMessages returns the feeder's message history for the last N days.
func (f *PetSafeFetcher) FetchMessages(thingName string, days int) ([]RawMessage, error) {
	var msgs []RawMessage
	path := fmt.Sprintf("/smart-feed/feeders/%s/messages?days=%d", thingName, days)
	if err := f.get(path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
