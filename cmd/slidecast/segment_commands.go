package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/backend"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	segmentCmd := &cobra.Command{
		Use:   "segment",
		Short: "Edit, reorder, and delete segments",
	}
	segmentCmd.AddCommand(newSegmentSetTextCommand(ctx))
	segmentCmd.AddCommand(newSegmentLockCommand(ctx, true))
	segmentCmd.AddCommand(newSegmentLockCommand(ctx, false))
	segmentCmd.AddCommand(newSegmentDeleteCommand(ctx))
	segmentCmd.AddCommand(newSegmentReorderCommand(ctx))
	segmentCmd.AddCommand(newSegmentImageCommand(ctx))
	return segmentCmd
}

// withProject loads the project into the app cache before running fn.
func withProject(ctx *commandContext, cmd *cobra.Command, projectArg string, fn func(*app) error) error {
	projectID, err := parseID(projectArg, "project id")
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
	return fn(app)
}

func newSegmentSetTextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-text <project-id> <segment-id> <text>",
		Short: "Replace a segment's narration text",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			segmentID, err := parseID(args[1], "segment id")
			if err != nil {
				return err
			}
			text := args[2]
			return withProject(ctx, cmd, args[0], func(app *app) error {
				if err := app.store.UpdateSegment(cmd.Context(), segmentID, backend.SegmentPatch{TextContent: &text}); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.jsonOutput() {
					segment, _ := app.store.Segment(segmentID)
					return printJSON(out, segment)
				}
				fmt.Fprintf(out, "Updated segment %d\n", segmentID)
				if app.stale.Has(segmentID) {
					fmt.Fprintf(out, "Audio for segment %d predates this text; regenerate with `slidecast audio generate %s %d`\n",
						segmentID, args[0], segmentID)
				}
				return nil
			})
		},
	}
}

func newSegmentLockCommand(ctx *commandContext, lock bool) *cobra.Command {
	use, short := "lock", "Lock a segment against edits"
	if !lock {
		use, short = "unlock", "Unlock a segment"
	}
	return &cobra.Command{
		Use:   use + " <project-id> <segment-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			segmentID, err := parseID(args[1], "segment id")
			if err != nil {
				return err
			}
			locked := lock
			return withProject(ctx, cmd, args[0], func(app *app) error {
				if err := app.store.UpdateSegment(cmd.Context(), segmentID, backend.SegmentPatch{IsLocked: &locked}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Segment %d %sed\n", segmentID, use)
				return nil
			})
		},
	}
}

func newSegmentDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id> <segment-id>",
		Short: "Delete a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			segmentID, err := parseID(args[1], "segment id")
			if err != nil {
				return err
			}
			return withProject(ctx, cmd, args[0], func(app *app) error {
				if err := app.store.DeleteSegment(cmd.Context(), segmentID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted segment %d; %d segments remain\n",
					segmentID, len(app.store.Segments()))
				return nil
			})
		},
	}
}

func newSegmentReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <project-id> <segment-id>...",
		Short: "Reorder segments into the given id sequence",
		Long: "Reorder segments into the given id sequence. Every segment of the\n" +
			"project must be listed exactly once.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := parseID(arg, "segment id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withProject(ctx, cmd, args[0], func(app *app) error {
				if err := app.store.Reorder(cmd.Context(), ids); err != nil {
					return err
				}
				ordered := make([]string, 0, len(ids))
				for _, id := range ids {
					ordered = append(ordered, fmt.Sprintf("%d", id))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "New order: %s\n", strings.Join(ordered, ", "))
				return nil
			})
		},
	}
}

func newSegmentImageCommand(ctx *commandContext) *cobra.Command {
	var filePath string
	var remove bool

	cmd := &cobra.Command{
		Use:   "image <project-id> <segment-id>",
		Short: "Attach or remove a segment's image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			segmentID, err := parseID(args[1], "segment id")
			if err != nil {
				return err
			}
			if remove == (strings.TrimSpace(filePath) != "") {
				return fmt.Errorf("pass exactly one of --file or --remove")
			}
			return withProject(ctx, cmd, args[0], func(app *app) error {
				out := cmd.OutOrStdout()
				if remove {
					if err := app.store.RemoveImage(cmd.Context(), segmentID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed image from segment %d\n", segmentID)
					return nil
				}
				if err := app.store.UploadImage(cmd.Context(), segmentID, filePath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Uploaded %s to segment %d\n", filePath, segmentID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Image file to upload")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the current image")
	return cmd
}
