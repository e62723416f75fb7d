package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/views"
)

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <thread-id>",
		Short: "Show a thread's messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessages,
	}
	return cmd
}

func runMessages(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}

	threadID := strings.TrimSpace(args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")

	messages, err := rt.store.ListMessages(cmd.Context(), rt.identity.UserID())
	if err != nil {
		return Exitf(ExitCodeFailure, "list messages: %v", err)
	}

	snap := cache.Snapshot{UserID: rt.identity.UserID(), Messages: messages}
	ordered := views.ThreadMessages(snap, threadID)
	if len(ordered) == 0 {
		return Exitf(ExitCodeFailure, "no messages for thread %s", threadID)
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(ordered, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode messages: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	out := cmd.OutOrStdout()
	for _, msg := range ordered {
		marker := " "
		if msg.Unread() {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %s -> %s  [%s]\n", marker,
			msg.CreatedAt.Local().Format(time.DateTime), msg.Sender, msg.Recipient, msg.Direction)
		for _, line := range strings.Split(strings.TrimRight(msg.Content, "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		if len(msg.Attachments) > 0 {
			fmt.Fprintf(out, "    attachments: %s\n", strings.Join(msg.Attachments, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}
