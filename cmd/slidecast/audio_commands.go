package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slidecast/internal/audiogen"
)

func newAudioCommand(ctx *commandContext) *cobra.Command {
	audioCmd := &cobra.Command{
		Use:   "audio",
		Short: "Generate narration audio",
	}
	audioCmd.AddCommand(newAudioGenerateCommand(ctx))
	audioCmd.AddCommand(newAudioGenerateAllCommand(ctx))
	return audioCmd
}

func newAudioGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <project-id> <segment-id>",
		Short: "Generate audio for one segment and wait for the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			segmentID, err := parseID(args[1], "segment id")
			if err != nil {
				return err
			}
			return withProject(ctx, cmd, args[0], func(app *app) error {
				if err := app.audio.Generate(cmd.Context(), segmentID); err != nil {
					return err
				}
				segment, _ := app.store.Segment(segmentID)
				out := cmd.OutOrStdout()
				if ctx.jsonOutput() {
					return printJSON(out, segment)
				}
				fmt.Fprintf(out, "Generated audio for segment %d (%.1fs): %s\n",
					segmentID, segment.AudioDuration, segment.AudioFile)
				return nil
			})
		},
	}
}

func newAudioGenerateAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate-all <project-id>",
		Short: "Generate audio for every segment in one bulk job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(ctx, cmd, args[0], func(app *app) error {
				runErr := app.audio.GenerateAll(cmd.Context())

				statuses := app.audio.Statuses()
				segments := app.store.Segments()
				out := cmd.OutOrStdout()
				if ctx.jsonOutput() {
					if err := printJSON(out, statuses); err != nil {
						return err
					}
					return runErr
				}

				rows := make([][]string, 0, len(segments))
				for _, segment := range segments {
					status := statuses[segment.ID]
					if status.State == "" {
						status.State = audiogen.StateIdle
					}
					detail := ""
					switch status.State {
					case audiogen.StateCompleted:
						detail = fmt.Sprintf("%.1fs", segment.AudioDuration)
					case audiogen.StateFailed:
						detail = status.Error
					}
					rows = append(rows, []string{
						strconv.FormatInt(segment.ID, 10),
						excerpt(segment.TextContent, 40),
						string(status.State),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Text", "Outcome", "Detail"}, rows, 0))
				return runErr
			})
		},
	}
}
