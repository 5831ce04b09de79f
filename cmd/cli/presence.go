package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:   "presence [user_id...]",
	Short: "Check online state and last-seen for one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkPresence(args)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show hub connection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/api/v1/ws/stats")
		if err != nil {
			return err
		}
		return printResult(body)
	},
}

func checkPresence(userIDs []string) error {
	payload := map[string]interface{}{
		"user_ids": userIDs,
	}

	body, err := apiPost("/api/v1/ws/presence", payload)
	if err != nil {
		return err
	}

	if output == "json" {
		return printResult(body)
	}

	var result struct {
		Presence map[string]struct {
			Status   string `json:"status"`
			LastSeen int64  `json:"last_seen"`
		} `json:"presence"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	for userID, p := range result.Presence {
		if p.Status == "online" {
			fmt.Printf("%s: online\n", userID)
		} else if p.LastSeen > 0 {
			fmt.Printf("%s: offline (last seen %d)\n", userID, p.LastSeen)
		} else {
			fmt.Printf("%s: offline\n", userID)
		}
	}
	return nil
}

func apiGet(path string) ([]byte, error) {
	resp, err := http.Get(apiURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	return readAPIResponse(resp)
}

func apiPost(path string, payload interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := http.Post(apiURL+path, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	return readAPIResponse(resp)
}

func readAPIResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.Unmarshal(body, &errResp)
		if msg, ok := errResp["message"].(string); ok {
			return nil, fmt.Errorf("API error: %s", msg)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	return body, nil
}

func printResult(body []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
