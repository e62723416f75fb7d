package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirelight/hirelight/internal/models"
	"github.com/hirelight/hirelight/internal/views"
)

func newThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List conversation threads",
		Args:  cobra.NoArgs,
		RunE:  runThreads,
	}
	cmd.Flags().String("filter", "active", "Thread bucket: active, archived, or all")
	cmd.Flags().String("search", "", "Filter by subject, participant, or applicant")
	return cmd
}

func runThreads(cmd *cobra.Command, _ []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}

	filterArg, _ := cmd.Flags().GetString("filter")
	search, _ := cmd.Flags().GetString("search")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	filter, err := models.ParseThreadFilter(filterArg)
	if err != nil {
		return usageError(cmd, fmt.Sprintf("invalid filter %q: use active, archived, or all", filterArg))
	}

	threads, err := rt.store.ListThreads(cmd.Context(), rt.identity.UserID(), filter)
	if err != nil {
		return Exitf(ExitCodeFailure, "list threads: %v", err)
	}

	if search = strings.TrimSpace(search); search != "" {
		filtered := threads[:0]
		for _, thread := range threads {
			if views.MatchesSearch(thread, search) {
				filtered = append(filtered, thread)
			}
		}
		threads = filtered
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(threads, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode threads: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	rows := make([][]string, 0, len(threads))
	for _, thread := range threads {
		participants := strings.Join(thread.DisplayParticipants(rt.identity.Address()), ", ")
		rows = append(rows, []string{
			thread.ID,
			truncate(thread.Subject, 48),
			truncate(participants, 40),
			string(thread.Status),
			strconv.Itoa(thread.UnreadCount),
			thread.LastMessageAt.Local().Format(time.DateTime),
		})
	}
	return writeTable(cmd.OutOrStdout(),
		[]string{"ID", "SUBJECT", "PARTICIPANTS", "STATUS", "UNREAD", "LAST MESSAGE"}, rows)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
