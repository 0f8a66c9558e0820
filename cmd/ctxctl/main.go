// Package main implements the ctxctl CLI for manual operations against a
// running ctxengine daemon and its local data.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	pkgsecrets "github.com/fyrsmithlabs/ctxengine/pkg/secrets"
)

var (
	// serverURL is the base URL of the daemon's health/metrics sidecar.
	serverURL string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ctxctl",
	Short:   "Operator CLI for the ctxengine daemon",
	Long:    "ctxctl checks a running ctxengine daemon's health and scrubs secrets\nfrom files before they are fed to the indexer or stored as memories.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "ctxengine sidecar URL")
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(healthCmd)
}

var scrubCmd = &cobra.Command{
	Use:   "scrub [file]",
	Short: "Redact secrets from a file or stdin",
	Long: `Redact committed secrets from a file or stdin using the same gitleaks
detection the indexer applies, printing the redacted content to stdout.

Examples:
  ctxctl scrub .env
  cat output.log | ctxctl scrub -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrub,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check ctxengine daemon health",
	RunE:  runHealth,
}

func runScrub(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
	}
	if len(content) == 0 {
		return fmt.Errorf("no content to scrub")
	}

	cwd, _ := os.Getwd()
	result, err := pkgsecrets.Redact(string(content), pkgsecrets.RedactOptions{ProjectPath: cwd})
	if err != nil {
		return fmt.Errorf("scrubbing: %w", err)
	}
	fmt.Print(result.Content)
	if result.Audit.HasRedactions() {
		fmt.Fprintf(os.Stderr, "%d secrets redacted\n", len(result.Audit.Redactions))
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w (is ctxengine running?)", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon reported status %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	fmt.Printf("%s: %s\n", body.Service, body.Status)
	return nil
}
