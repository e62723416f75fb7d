package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <thread-id> [body]",
		Short: "Send a reply on a thread",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSend,
	}
	cmd.Flags().String("file", "", "Read the reply body from a file")
	cmd.Flags().StringSlice("attach", nil, "Attachment reference (repeatable)")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireUser(); err != nil {
		return err
	}

	threadID := strings.TrimSpace(args[0])
	bodyArg := ""
	if len(args) > 1 {
		bodyArg = args[1]
	}
	filePath, _ := cmd.Flags().GetString("file")
	attachments, _ := cmd.Flags().GetStringSlice("attach")

	body, err := resolveSendBody(cmd, bodyArg, filePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" && len(attachments) == 0 {
		return usageError(cmd, "reply needs a body or at least one --attach")
	}

	eng, err := rt.loadEngine(cmd)
	if err != nil {
		return err
	}

	id, err := eng.SendReply(cmd.Context(), threadID, body, attachments)
	if err != nil {
		return Exitf(ExitCodeFailure, "send reply: %v", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func resolveSendBody(cmd *cobra.Command, bodyArg, filePath string) (string, error) {
	bodyArgTrim := strings.TrimSpace(bodyArg)
	filePath = strings.TrimSpace(filePath)

	if filePath != "" && bodyArgTrim != "" {
		return "", usageError(cmd, "provide either a body argument or --file, not both")
	}

	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read file: %v", err)
		}
		return string(data), nil
	case bodyArgTrim != "":
		return bodyArg, nil
	default:
		return readStdinIfPiped()
	}
}

func readStdinIfPiped() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
