// Package cli is the fairsharectl command-line client: it talks to a
// running policy server's admin endpoints over plain HTTP, the way
// scootcl talks to the Scoot daemon over a Unix socket.
package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// CliClient owns the cobra root command and the HTTP client used by every
// subcommand to reach a policy server's admin endpoints.
type CliClient struct {
	rootCmd *cobra.Command
	addr    string
	http    *http.Client
}

// Exec runs the CLI: parses os.Args and dispatches to the matching
// subcommand.
func (c *CliClient) Exec() error {
	return c.rootCmd.Execute()
}

// NewCliClient builds a client bound to a policy server's admin address,
// e.g. "http://localhost:9090".
func NewCliClient(addr string) (*CliClient, error) {
	c := &CliClient{
		addr: addr,
		http: &http.Client{Timeout: 5 * time.Second},
	}

	rootCmd := &cobra.Command{
		Use:   "fairsharectl",
		Short: "fairsharectl inspects a running fair-share policy server",
		Run:   func(*cobra.Command, []string) {},
	}
	rootCmd.PersistentFlags().StringVar(&c.addr, "addr", addr, "policy server admin address")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(makeStatusCmd(c))
	rootCmd.AddCommand(makeJobsCmd(c))
	return c, nil
}
