package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledger-cli",
		Short: "Ledger CLI tool",
		Long:  `A command line interface for interacting with the ledger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <id>",
		Short: "Show an account balance through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + args[0] + "/balance")
		},
	})

	balanceAt := &cobra.Command{
		Use:   "balance-at <id>",
		Short: "Derive an account balance at a journal sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, _ := cmd.Flags().GetInt64("seq")
			return getJSON(fmt.Sprintf("/api/v1/accounts/%s/balance-at?seq=%d", args[0], seq))
		},
	}
	balanceAt.Flags().Int64("seq", 0, "Journal sequence (0 means current head)")
	cmd.AddCommand(balanceAt)

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			return getJSON(fmt.Sprintf("/api/v1/accounts/?limit=%d&offset=%d", limit, offset))
		},
	}
	list.Flags().Int("limit", 20, "Page size")
	list.Flags().Int("offset", 0, "Page offset")
	cmd.AddCommand(list)

	return cmd
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Journal operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "head",
		Short: "Show the journal head sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/journal/head")
		},
	})

	read := &cobra.Command{
		Use:   "read",
		Short: "Read a contiguous slice of the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetInt64("from")
			limit, _ := cmd.Flags().GetInt("limit")
			return getJSON("/api/v1/journal/?from=" + strconv.FormatInt(from, 10) + "&limit=" + strconv.Itoa(limit))
		},
	}
	read.Flags().Int64("from", 1, "First sequence to read")
	read.Flags().Int("limit", 100, "Maximum transactions to return")
	cmd.AddCommand(read)

	cmd.AddCommand(&cobra.Command{
		Use:   "entries <account-id>",
		Short: "List journal entries for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + args[0] + "/entries")
		},
	})

	return cmd
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ledger consistency checks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Replay the journal and compare against stored balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reconciliation/report")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "zero-sum",
		Short: "Verify that all journal entries sum to zero",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reconciliation/zero-sum")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "account <id>",
		Short: "Reconcile a single account against the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reconciliation/accounts/" + args[0])
		},
	})

	return cmd
}

// getJSON fetches path from the API and pretty-prints the JSON response.
func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	printJSON(decoded)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(out))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
