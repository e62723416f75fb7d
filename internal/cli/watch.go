package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirelight/hirelight/internal/activity"
	"github.com/hirelight/hirelight/internal/engine"
	"github.com/hirelight/hirelight/internal/events"
	"github.com/hirelight/hirelight/internal/inbox"
	"github.com/hirelight/hirelight/internal/models"
	"github.com/hirelight/hirelight/internal/push/ws"
	"github.com/hirelight/hirelight/internal/scheduler"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the inbox live until interrupted",
		Long:  "watch subscribes to the push feed, keeps the local view in sync with adaptive polling, and prints new inbound messages as they arrive.",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	cmd.Flags().Bool("verbose", false, "print each refresh outcome")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	monitor := activity.NewMonitor(rt.config.Scheduler.IdleWindow)
	defer monitor.Close()

	transport := ws.NewTransport(ws.Config{
		URL:               rt.config.Push.URL,
		Token:             rt.config.Push.Token,
		ReconnectBase:     rt.config.Push.ReconnectBase,
		ReconnectMax:      rt.config.Push.ReconnectMax,
		HeartbeatInterval: rt.config.Push.HeartbeatInterval,
	})

	controller := inbox.New(rt.store, transport, rt.identity, monitor,
		inbox.WithSchedulerConfig(scheduler.Config{
			FastInterval: rt.config.Scheduler.FastInterval,
			SlowInterval: rt.config.Scheduler.SlowInterval,
		}),
		inbox.WithToastFunc(func(t engine.Toast) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", t.Level, t.Text)
		}),
		inbox.WithMessageNotifier(func(msg models.Message) {
			fmt.Fprintf(out, "%s  new message on %s from %s: %s\n",
				time.Now().Local().Format(time.TimeOnly), msg.ThreadID, msg.Sender, firstLine(msg.Content))
		}),
	)

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		err := controller.Events().Subscribe("watch", events.Filter{
			Types: []events.EventType{events.TypeRefreshCompleted, events.TypeRefreshFailed},
		}, func(ev events.Event) {
			if ev.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s  refresh failed: %v\n", ev.At.Local().Format(time.TimeOnly), ev.Err)
				return
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s  refreshed\n", ev.At.Local().Format(time.TimeOnly))
		})
		if err != nil {
			return err
		}
	}

	// A terminal session never reports interaction, so the monitor
	// settles on the idle fast-poll cadence once the window elapses.
	monitor.SetVisible(true)
	if err := controller.Acquire(ctx); err != nil {
		return Exitf(ExitCodeFailure, "start sync: %v", err)
	}
	defer controller.Release()

	view := controller.Snapshot()
	fmt.Fprintf(out, "watching inbox for %s (%d active, %d archived, %d unread)\n",
		rt.identity.UserID(), view.Counts.Active, view.Counts.Archived, view.Counts.Unread)

	<-ctx.Done()
	fmt.Fprintln(out, "stopped")
	return nil
}

func firstLine(content string) string {
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			return content[:i]
		}
	}
	return content
}
