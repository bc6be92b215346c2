package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL  string
	apiKey   string
	operator string
	timeout  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "retailsync-cli",
		Short: "RetailSync operator CLI",
		Long:  `A command line interface for operating the RetailSync ledger server.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the RetailSync API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("ADMIN_API_KEY"), "Operator API key")
	rootCmd.PersistentFlags().StringVar(&operator, "operator", "", "Operator name recorded in the audit trail")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(outboxCmd(), ledgerCmd(), deviceCmd(), ratesCmd(), periodsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox operations",
	}

	var status, deviceID string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox events",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/outbox?limit=%d", limit)
			if status != "" {
				path += "&status=" + status
			}
			if deviceID != "" {
				path += "&device_id=" + deviceID
			}
			return request(http.MethodGet, path, nil)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, processed, failed, dead)")
	listCmd.Flags().StringVar(&deviceID, "device", "", "Filter by device id")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to return")

	getCmd := &cobra.Command{
		Use:   "get <event-id>",
		Short: "Show one outbox event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/outbox/"+args[0], nil)
		},
	}

	var resetHistory bool
	requeueCmd := &cobra.Command{
		Use:   "requeue <event-id>",
		Short: "Requeue a failed or dead event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"reset_history": resetHistory}
			return request(http.MethodPost, "/api/v1/outbox/"+args[0]+"/requeue", body)
		},
	}
	requeueCmd.Flags().BoolVar(&resetHistory, "reset-history", false, "Reset the attempt counter")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show outbox counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/outbox/stats", nil)
		},
	}

	cmd.AddCommand(listCmd, getCmd, requeueCmd, statsCmd)
	return cmd
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	var companyID string
	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check per-currency ledger balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/journals/consistency?company_id="+companyID, nil)
		},
	}
	consistencyCmd.Flags().StringVar(&companyID, "company", "", "Company id")
	consistencyCmd.MarkFlagRequired("company")

	journalCmd := &cobra.Command{
		Use:   "journal <journal-id>",
		Short: "Show a journal with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/journals/"+args[0], nil)
		},
	}

	reverseCmd := &cobra.Command{
		Use:   "reverse <journal-id>",
		Short: "Post the reversal of a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodPost, "/api/v1/journals/"+args[0]+"/reverse", nil)
		},
	}

	cmd.AddCommand(consistencyCmd, journalCmd, reverseCmd)
	return cmd
}

func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Device registry operations",
	}

	var companyID, name string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a device and print its one-time token",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"company_id": companyID, "name": name}
			return request(http.MethodPost, "/api/v1/devices", body)
		},
	}
	registerCmd.Flags().StringVar(&companyID, "company", "", "Company id")
	registerCmd.Flags().StringVar(&name, "name", "", "Device name")
	registerCmd.MarkFlagRequired("company")
	registerCmd.MarkFlagRequired("name")

	var listCompany string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/devices?company_id="+listCompany, nil)
		},
	}
	listCmd.Flags().StringVar(&listCompany, "company", "", "Company id")
	listCmd.MarkFlagRequired("company")

	resetCmd := &cobra.Command{
		Use:   "reset-token <device-id>",
		Short: "Issue a new token, invalidating the old one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodPost, "/api/v1/devices/"+args[0]+"/token", nil)
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable <device-id>",
		Short: "Disable a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodPost, "/api/v1/devices/"+args[0]+"/disable", nil)
		},
	}

	cmd.AddCommand(registerCmd, listCmd, resetCmd, disableCmd)
	return cmd
}

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Exchange rate operations",
	}

	var date, rate, rateType, note string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the USD to LBP rate for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"rate_date": date,
				"rate":      rate,
				"type":      rateType,
				"note":      note,
			}
			return request(http.MethodPost, "/api/v1/rates", body)
		},
	}
	setCmd.Flags().StringVar(&date, "date", "", "Business date (YYYY-MM-DD)")
	setCmd.Flags().StringVar(&rate, "rate", "", "USD to LBP rate")
	setCmd.Flags().StringVar(&rateType, "type", "market", "Rate type (official, market, internal)")
	setCmd.Flags().StringVar(&note, "note", "", "Optional note")
	setCmd.MarkFlagRequired("date")
	setCmd.MarkFlagRequired("rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/rates", nil)
		},
	}

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

func periodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Accounting period lock operations",
	}

	var companyID, start, end string
	var unlock bool
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Lock or unlock an accounting period",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"company_id": companyID,
				"start_date": start,
				"end_date":   end,
				"locked":     !unlock,
			}
			return request(http.MethodPost, "/api/v1/periods", body)
		},
	}
	setCmd.Flags().StringVar(&companyID, "company", "", "Company id")
	setCmd.Flags().StringVar(&start, "start", "", "Period start date (YYYY-MM-DD)")
	setCmd.Flags().StringVar(&end, "end", "", "Period end date (YYYY-MM-DD)")
	setCmd.Flags().BoolVar(&unlock, "unlock", false, "Unlock instead of lock")
	setCmd.MarkFlagRequired("company")
	setCmd.MarkFlagRequired("start")
	setCmd.MarkFlagRequired("end")

	var listCompany string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List period locks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/api/v1/periods?company_id="+listCompany, nil)
		},
	}
	listCmd.Flags().StringVar(&listCompany, "company", "", "Company id")
	listCmd.MarkFlagRequired("company")

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

// request performs one authenticated API call and prints the response.
func request(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	if operator != "" {
		req.Header.Set("X-Operator", operator)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(data), 500))
	}

	var pretty any
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Println(string(data))
		return nil
	}
	printJSON(pretty)
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
