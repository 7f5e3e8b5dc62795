package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/entrepeneur4lyf/documiner/internal/markdown"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved chats",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistories(cmd.OutOrStdout(), documinerApp.Controller, "")
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Fuzzy search saved chats by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistories(cmd.OutOrStdout(), documinerApp.Controller, strings.Join(args, " "))
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := markdown.NewChatRenderer()
		if err != nil {
			return err
		}
		return showHistory(cmd.OutOrStdout(), documinerApp.Store, renderer, args[0])
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteHistory(cmd.OutOrStdout(), documinerApp.Store, args[0])
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd, historySearchCmd, historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func listHistories(out io.Writer, controller *session.Controller, term string) error {
	histories, err := controller.Histories(term)
	if err != nil {
		return err
	}
	if len(histories) == 0 {
		fmt.Fprintln(out, "No saved chats.")
		return nil
	}

	for _, h := range histories {
		fmt.Fprintf(out, "%s  %s\n", h.DisplayName, markdown.SubtleStyle.Render(h.Filename))
	}
	return nil
}

// resolveHistory accepts either a history filename or a display name
func resolveHistory(store storage.HistoryStore, name string) (string, error) {
	if storage.ValidateFilename(name) == nil && store.Exists(name) {
		return name, nil
	}
	if filename, ok := store.Resolve(name); ok {
		return filename, nil
	}
	return "", fmt.Errorf("%w: %s", storage.ErrHistoryNotFound, name)
}

func showHistory(out io.Writer, store storage.HistoryStore, renderer *markdown.Renderer, name string) error {
	filename, err := resolveHistory(store, name)
	if err != nil {
		return err
	}

	messages, err := store.Load(filename)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, markdown.TitleStyle.Render(storage.DisplayName(filename)))
	for _, msg := range messages {
		printMessage(out, renderer, msg)
	}
	return nil
}

func printMessage(out io.Writer, renderer *markdown.Renderer, msg storage.Message) {
	fmt.Fprintf(out, "\n%s\n", markdown.RoleLabel(string(msg.Role)))

	if msg.Role == storage.RoleAssistant && renderer != nil {
		if rendered, err := renderer.Render(msg.Content); err == nil {
			fmt.Fprintln(out, rendered)
			return
		}
	}
	fmt.Fprintln(out, msg.Content)
}

func deleteHistory(out io.Writer, store storage.HistoryStore, name string) error {
	if storage.ValidateFilename(name) == nil {
		err := store.Delete(name)
		if err == nil {
			fmt.Fprintf(out, "Deleted %s\n", name)
			return nil
		}
		if !errors.Is(err, storage.ErrHistoryNotFound) {
			return err
		}
	}

	if !store.DeleteByDisplayName(name) {
		return fmt.Errorf("could not delete %q: %w", name, storage.ErrHistoryNotFound)
	}
	fmt.Fprintf(out, "Deleted %s\n", name)
	return nil
}
