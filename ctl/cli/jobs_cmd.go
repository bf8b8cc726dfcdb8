package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

type jobsResponse struct {
	TotalCores int `json:"total_cores"`
	Jobs       []struct {
		Id       string  `json:"id"`
		Name     string  `json:"name"`
		Priority float64 `json:"priority"`
		Bias     float64 `json:"bias"`
		CpuTime  int64   `json:"cputime"`
	} `json:"jobs"`
}

func makeJobsCmd(c *CliClient) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "list every job the policy server currently knows about",
		RunE:  c.jobs,
	}
}

func (c *CliClient) jobs(cmd *cobra.Command, args []string) error {
	resp, err := c.http.Get(c.addr + "/admin/jobs.json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fairsharectl: jobs query returned %v: %s", resp.StatusCode, raw)
	}

	var body jobsResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}

	fmt.Printf("total_cores: %d\n", body.TotalCores)
	fmt.Printf("%-20s %-20s %10s %8s %10s\n", "ID", "NAME", "PRIORITY", "BIAS", "CPUTIME")
	for _, j := range body.Jobs {
		fmt.Printf("%-20s %-20s %10.4f %8.4f %10d\n", j.Id, j.Name, j.Priority, j.Bias, j.CpuTime)
	}
	return nil
}
