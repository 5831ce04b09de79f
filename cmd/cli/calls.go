package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect call records",
}

var callHistoryCmd = &cobra.Command{
	Use:   "history <user_id>",
	Short: "Show a user's recent calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callHistory(args[0])
	},
}

var callGetCmd = &cobra.Command{
	Use:   "get <room_id>",
	Short: "Show one call record by room id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/api/v1/calls/" + args[0])
		if err != nil {
			return err
		}
		return printResult(body)
	},
}

func init() {
	callsCmd.AddCommand(callHistoryCmd)
	callsCmd.AddCommand(callGetCmd)
}

func callHistory(userID string) error {
	body, err := apiGet("/api/v1/calls/history/" + userID)
	if err != nil {
		return err
	}

	if output == "json" {
		return printResult(body)
	}

	var result struct {
		Calls []struct {
			RoomID      string  `json:"room_id"`
			InitiatorID string  `json:"initiator_id"`
			Status      string  `json:"status"`
			StartedAt   *string `json:"started_at"`
			EndedAt     *string `json:"ended_at"`
		} `json:"calls"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Calls) == 0 {
		fmt.Println("No calls found")
		return nil
	}

	for _, c := range result.Calls {
		line := fmt.Sprintf("%s  %s  initiator=%s", c.RoomID, c.Status, c.InitiatorID)
		if c.StartedAt != nil {
			line += "  started=" + *c.StartedAt
		}
		if c.EndedAt != nil {
			line += "  ended=" + *c.EndedAt
		}
		fmt.Println(line)
	}
	return nil
}
