// Package rankapi is the HTTP client for the game platform's ranking
// endpoint, the production RankingSelector.
package rankapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/creata-games/airdrop-engine/internal/services"
)

type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string, client ...*http.Client) *Client {
	if len(client) > 0 {
		return &Client{endpoint: endpoint, http: client[0]}
	}
	return &Client{endpoint: endpoint, http: http.DefaultClient}
}

type topNResponse struct {
	Data []services.RankedBeneficiary `json:"data"`
}

// TopN fetches the leaderboard, best score first. The backend owns the
// ordering and tie-breaking.
func (c *Client) TopN(basectx context.Context, n int) ([]services.RankedBeneficiary, error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*10)
	defer cancel()

	req, err := http.NewRequestWithContext(newctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("rankapi: create req: %w", err)
	}
	query := req.URL.Query()
	query.Set("limit", strconv.Itoa(n))
	req.URL.RawQuery = query.Encode()
	req.Header.Add("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rankapi: do req: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rankapi: unexpected status %s", resp.Status)
	}

	var returns topNResponse
	if err := json.NewDecoder(resp.Body).Decode(&returns); err != nil {
		return nil, fmt.Errorf("rankapi: decode response: %w", err)
	}
	if len(returns.Data) > n {
		returns.Data = returns.Data[:n]
	}
	return returns.Data, nil
}
