package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showJSON bool

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print run.yml as JSON")
}

var showCmd = &cobra.Command{
	Use:   "show RUN_DIR",
	Short: "Show the record of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		md, err := experiment.ReadMetadata(args[0])
		if err != nil {
			return err
		}

		console := newConsole(showJSON)
		if showJSON {
			return console.Json(md)
		}
		return writeRunDetails(console.Out, md)
	},
}

func writeRunDetails(w io.Writer, md *experiment.Metadata) error {
	fmt.Fprintf(w, "Run:        %s\n", md.Name)
	fmt.Fprintf(w, "ID:         %s\n", md.ID)
	fmt.Fprintf(w, "Status:     %s\n", md.Status)
	fmt.Fprintf(w, "Root:       %s\n", md.Root)
	fmt.Fprintf(w, "Started:    %s\n", md.StartedAt.Local().Format(time.RFC3339))
	if md.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:   %s (%s)\n", md.FinishedAt.Local().Format(time.RFC3339), formatDuration(md.DurationMs))
	}
	fmt.Fprintf(w, "Initiator:  %s %s@%s\n", md.Initiator.Type, md.Initiator.Id, md.Initiator.Tenant)
	if md.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", md.Error)
	}

	if len(md.Directories) > 0 {
		fmt.Fprintln(w, "\nDirectories:")
		names := make([]string, 0, len(md.Directories))
		for name := range md.Directories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %s\n", name, md.Directories[name])
		}
	}

	for _, section := range []struct {
		title  string
		values experiment.ConfigValues
	}{
		{"Annotations", md.Annotations},
		{"Config", md.Config},
	} {
		if len(section.values) == 0 {
			continue
		}
		out, err := yaml.Marshal(section.values)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", section.title, err)
		}
		fmt.Fprintf(w, "\n%s:\n", section.title)
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}
