package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/cogstim/internal/server"
	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), base+"/api/v1/jobs")
	}
	return getJobStatus(cmd.OutOrStdout(), base+"/api/v1/jobs/"+args[0], args[0])
}

// getJSON fetches url into v, turning non-200 answers into errors.
func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tKIND\tSTATE\tPHASE\tPROGRESS")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n",
			job.ID, job.Kind, job.State, job.Progress.Phase, job.Progress.Done, job.Progress.Total)
	}
	return w.Flush()
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status struct {
		server.Job
		Elapsed float64 `json:"elapsed"`
	}
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	lines := []string{
		styleTitle.Render("Job " + status.ID),
		field("kind", status.Kind),
		field("state", status.State),
		field("output", status.Config.OutputDir),
		field("phase", status.Progress.Phase),
		field("progress", fmt.Sprintf("%d/%d", status.Progress.Done, status.Progress.Total)),
		field("images", status.Stats.Images),
		field("elapsed", time.Duration(status.Elapsed*float64(time.Second)).Round(time.Millisecond)),
	}
	if status.Progress.Skipped > 0 {
		lines = append(lines, field("skipped", styleWarning.Render(fmt.Sprint(status.Progress.Skipped))))
	}
	if status.Error != "" {
		lines = append(lines, field("error", styleError.Render(status.Error)))
	}
	fmt.Fprintln(out, styleBox.Render(strings.Join(lines, "\n")))
	return nil
}

