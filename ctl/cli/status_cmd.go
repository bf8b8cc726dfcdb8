package cli

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

func makeStatusCmd(c *CliClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the policy server's rendered stats",
		RunE:  c.status,
	}
}

func (c *CliClient) status(cmd *cobra.Command, args []string) error {
	resp, err := c.http.Get(c.addr + "/admin/metrics.json?pretty=true")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fairsharectl: status query returned %v: %s", resp.StatusCode, body)
	}

	log.Printf("fetched stats from %s", c.addr) // this ends up on stderr
	fmt.Printf("%s", body)                       // this ends up on stdout
	return nil
}
