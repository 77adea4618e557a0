package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivlev/video2comic/internal/director"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [storyboard.yaml|dir]",
		Short: "List degraded pages and low-confidence bubbles of a finished comic",
		Long: "Reads a storyboard and lists everything that needs a human look. With a\n" +
			"directory, the most recently written storyboard below it is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.load()
			if err != nil {
				return err
			}
			target := cfg.Storage.OutputDir
			if len(args) == 1 {
				target = args[0]
			}

			path, err := director.FindLatestStoryboard(target)
			if err != nil {
				return err
			}
			sb, err := director.ReadStoryboard(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storyboard: %s\nJob: %s\nSource: %s\nPages: %d\n", path, sb.JobID, sb.Source, len(sb.Pages))

			issues := sb.Issues()
			if len(issues) == 0 {
				fmt.Fprintln(out, "No issues.")
				return nil
			}
			fmt.Fprintln(out, renderIssues(issues))
			return nil
		},
	}
}

func renderIssues(issues []director.Issue) string {
	rows := make([][]string, 0, len(issues))
	for _, is := range issues {
		panel := "-"
		if is.Panel >= 0 {
			panel = strconv.Itoa(is.Panel + 1)
		}
		rows = append(rows, []string{strconv.Itoa(is.Page + 1), panel, string(is.Kind), is.Message})
	}
	return renderTable(
		[]string{"Page", "Panel", "Kind", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
	)
}
