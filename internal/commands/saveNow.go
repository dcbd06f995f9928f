package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"codeshare/internal/api"
	"codeshare/internal/config"
)

// SaveNow asks a running server to snapshot every live room.
func SaveNow(client *http.Client, cfg *config.Config) error {
	url := fmt.Sprintf("http://%s/admin/save", cfg.AdminAddr)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if cfg.AdminPassword != "" {
		req.SetBasicAuth(api.AdminUser, cfg.AdminPassword)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to save rooms (Status: %d): %s", resp.StatusCode, string(body))
	}

	var result api.SaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Saved %d rooms.\n", result.Saved)
	return nil
}
