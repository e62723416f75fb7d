package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirelight/hirelight/internal/engine"
)

func newMarkReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <thread-id>...",
		Short: "Mark threads and their inbound messages as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerThread(cmd, args, "mark read", func(eng *engine.Engine, ctx context.Context, id string) error {
				return eng.MarkRead(ctx, id)
			})
		},
	}
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <thread-id>...",
		Short: "Move threads to the archived bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, "archive",
				func(eng *engine.Engine, ctx context.Context, id string) error { return eng.Archive(ctx, id) },
				func(eng *engine.Engine, ctx context.Context, ids []string) error { return eng.ArchiveAll(ctx, ids) })
		},
	}
}

func newUnarchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <thread-id>...",
		Short: "Restore threads to the active bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, "unarchive",
				func(eng *engine.Engine, ctx context.Context, id string) error { return eng.Unarchive(ctx, id) },
				func(eng *engine.Engine, ctx context.Context, ids []string) error { return eng.UnarchiveAll(ctx, ids) })
		},
	}
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <thread-id>...",
		Short: "Delete threads and their messages permanently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return usageError(cmd, "permanent deletion requires --force")
			}
			return runBatch(cmd, args, "delete",
				func(eng *engine.Engine, ctx context.Context, id string) error { return eng.Delete(ctx, id) },
				func(eng *engine.Engine, ctx context.Context, ids []string) error { return eng.DeleteAll(ctx, ids) })
		},
	}
	cmd.Flags().Bool("force", false, "Confirm permanent deletion")
	return cmd
}

// runBatch applies the single-thread mutation for one id and the
// all-or-nothing bulk form for several.
func runBatch(cmd *cobra.Command, ids []string, verb string,
	single func(*engine.Engine, context.Context, string) error,
	bulk func(*engine.Engine, context.Context, []string) error) error {

	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}
	eng, err := rt.loadEngine(cmd)
	if err != nil {
		return err
	}

	if len(ids) == 1 {
		if err := single(eng, cmd.Context(), ids[0]); err != nil {
			return Exitf(ExitCodeFailure, "%s %s: %v", verb, ids[0], err)
		}
	} else {
		if err := bulk(eng, cmd.Context(), ids); err != nil {
			return Exitf(ExitCodeFailure, "%s %d threads: %v", verb, len(ids), err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d thread(s)\n", verb, len(ids))
	return nil
}

// runPerThread applies a mutation thread by thread; used for mark-read,
// which has no bulk backend form and is idempotent per thread.
func runPerThread(cmd *cobra.Command, ids []string, verb string,
	apply func(*engine.Engine, context.Context, string) error) error {

	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}
	eng, err := rt.loadEngine(cmd)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := apply(eng, cmd.Context(), id); err != nil {
			return Exitf(ExitCodeFailure, "%s %s: %v", verb, id, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d thread(s)\n", verb, len(ids))
	return nil
}
