package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slidecast/internal/backend"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and update project settings",
	}
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectSetCommand(ctx))
	return projectCmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project and its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			app, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.FetchProject(cmd.Context(), projectID); err != nil {
				return err
			}
			project := app.store.Project()
			segments := app.store.Segments()

			out := cmd.OutOrStdout()
			if ctx.jsonOutput() {
				return printJSON(out, map[string]any{
					"project":  project,
					"segments": segments,
				})
			}

			fmt.Fprintf(out, "%s (project %d)\n", project.Title, project.ID)
			fmt.Fprintf(out, "  %s @ %d fps, voice %s\n", project.Resolution, project.Framerate, project.Voice)
			fmt.Fprintf(out, "  subtitles=%s watermark=%s outro=%s\n",
				yesNo(project.SubtitlesEnabled), yesNo(project.WatermarkEnabled), yesNo(project.OutroEnabled))

			rows := make([][]string, 0, len(segments))
			for _, segment := range segments {
				audio := "-"
				if segment.HasAudio() {
					audio = fmt.Sprintf("%.1fs", segment.AudioDuration)
					if app.stale.Has(segment.ID) {
						audio += " (stale)"
					}
				}
				rows = append(rows, []string{
					strconv.FormatInt(segment.ID, 10),
					strconv.Itoa(segment.SequenceIndex),
					excerpt(segment.TextContent, 48),
					audio,
					yesNo(segment.IsLocked),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Seq", "Text", "Audio", "Locked"}, rows, 0, 1))
			return nil
		},
	}
}

func newProjectSetCommand(ctx *commandContext) *cobra.Command {
	var (
		title      string
		resolution string
		framerate  int
		voice      string
		subtitles  bool
		watermark  bool
		outro      bool
	)

	cmd := &cobra.Command{
		Use:   "set <project-id>",
		Short: "Update project settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}

			var patch backend.ProjectPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("resolution") {
				patch.Resolution = &resolution
			}
			if flags.Changed("framerate") {
				patch.Framerate = &framerate
			}
			if flags.Changed("voice") {
				patch.Voice = &voice
			}
			if flags.Changed("subtitles") {
				patch.SubtitlesEnabled = &subtitles
			}
			if flags.Changed("watermark") {
				patch.WatermarkEnabled = &watermark
			}
			if flags.Changed("outro") {
				patch.OutroEnabled = &outro
			}
			if patch.IsZero() {
				return fmt.Errorf("no settings to change; pass at least one flag")
			}

			app, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.FetchProject(cmd.Context(), projectID); err != nil {
				return err
			}
			if err := app.store.UpdateProject(cmd.Context(), patch); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.jsonOutput() {
				return printJSON(out, app.store.Project())
			}
			fmt.Fprintf(out, "Updated project %d\n", projectID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Project title")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Output resolution, e.g. 1920x1080")
	cmd.Flags().IntVar(&framerate, "framerate", 0, "Output framerate")
	cmd.Flags().StringVar(&voice, "voice", "", "Narration voice")
	cmd.Flags().BoolVar(&subtitles, "subtitles", false, "Burn in subtitles")
	cmd.Flags().BoolVar(&watermark, "watermark", false, "Apply watermark")
	cmd.Flags().BoolVar(&outro, "outro", false, "Append outro")
	return cmd
}
