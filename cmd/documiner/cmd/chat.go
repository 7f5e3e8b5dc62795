package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/markdown"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  /new [pdf...]     start a new chat, optionally with new documents
  /load <name>      load a saved chat
  /history [term]   list saved chats, fuzzy-filtered by term
  /delete <name>    delete a saved chat
  /help             show this help
  /quit             exit`

var chatCmd = &cobra.Command{
	Use:   "chat [pdf...]",
	Short: "Chat with PDF documents in the terminal",
	Long: `Uploads the given PDFs (at most three) and starts an interactive chat about
them. Without arguments, use /load to continue a saved chat or /new to upload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !documinerApp.Controller.HasClient() {
			return fmt.Errorf("%w: set GEMINI_API_KEY or gemini.apiKey", llm.ErrMissingAPIKey)
		}

		renderer, err := markdown.NewChatRenderer()
		if err != nil {
			return err
		}

		r := &repl{
			in:         cmd.InOrStdin(),
			out:        cmd.OutOrStdout(),
			controller: documinerApp.Controller,
			store:      documinerApp.Store,
			renderer:   renderer,
			state:      &session.State{},
		}
		return r.run(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// repl is the line-based terminal chat loop
type repl struct {
	in         io.Reader
	out        io.Writer
	controller *session.Controller
	store      storage.HistoryStore
	renderer   *markdown.Renderer
	state      *session.State
}

func (r *repl) run(ctx context.Context, paths []string) error {
	fmt.Fprintln(r.out, markdown.TitleStyle.Render("DocuMiner"))
	fmt.Fprintln(r.out, markdown.SubtleStyle.Render("Ask questions about your PDFs. Type /help for commands."))

	if len(paths) > 0 {
		r.upload(ctx, paths)
	}

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprintf(r.out, "\n%s ", markdown.RoleLabel(string(storage.RoleUser))+">")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}

		r.ask(ctx, line)
	}

	return scanner.Err()
}

// command runs a slash command and reports whether the loop should end
func (r *repl) command(ctx context.Context, line string) bool {
	fields := splitArgs(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/new":
		r.controller.NewSession(r.state)
		fmt.Fprintln(r.out, markdown.SubtleStyle.Render("Started a new chat."))
		if len(args) > 0 {
			r.upload(ctx, args)
		}
	case "/history":
		if err := listHistories(r.out, r.controller, strings.Join(args, " ")); err != nil {
			r.printError(err)
		}
	case "/load":
		if len(args) == 0 {
			r.printError(fmt.Errorf("usage: /load <name>"))
			return false
		}
		r.load(ctx, strings.Join(args, " "))
	case "/delete":
		if len(args) == 0 {
			r.printError(fmt.Errorf("usage: /delete <name>"))
			return false
		}
		r.delete(strings.Join(args, " "))
	default:
		r.printError(fmt.Errorf("unknown command %s", name))
	}
	return false
}

func (r *repl) upload(ctx context.Context, paths []string) {
	uploads := make([]session.Upload, 0, len(paths))
	for _, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			r.printError(fmt.Errorf("%s is not a PDF", path))
			return
		}
		f, err := os.Open(path)
		if err != nil {
			r.printError(err)
			return
		}
		defer f.Close()
		uploads = append(uploads, session.Upload{Name: filepath.Base(path), Content: f})
	}

	spin := startSpinner(r.out, "Processing documents")
	err := r.controller.UploadDocuments(ctx, r.state, uploads)
	spin.Stop()
	if err != nil {
		r.printError(err)
		return
	}

	fmt.Fprintf(r.out, "Documents ready: %s\n", strings.Join(r.state.DocumentNames, ", "))
	if n := len(r.state.Messages); n > 0 {
		fmt.Fprintln(r.out, markdown.SubtleStyle.Render(fmt.Sprintf("Continuing saved chat (%d messages).", n)))
	}
}

func (r *repl) load(ctx context.Context, name string) {
	filename, err := resolveHistory(r.store, name)
	if err == nil {
		err = r.controller.LoadHistory(ctx, r.state, filename)
	}
	if err != nil {
		r.printError(err)
		return
	}

	for _, msg := range r.state.Messages {
		printMessage(r.out, r.renderer, msg)
	}
	fmt.Fprintln(r.out, markdown.SubtleStyle.Render("Loaded "+storage.DisplayName(filename)+". The original documents are not attached to this chat."))
}

func (r *repl) delete(name string) {
	filename, err := resolveHistory(r.store, name)
	if err == nil {
		err = r.controller.DeleteHistory(r.state, filename)
	}
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintf(r.out, "Deleted %s\n", storage.DisplayName(filename))
}

// ask streams the reply as it arrives, then prints the rendered answer
func (r *repl) ask(ctx context.Context, prompt string) {
	if !r.state.HasActiveChat() {
		r.printError(session.ErrNoActiveChat)
		return
	}

	fmt.Fprintf(r.out, "\n%s\n", markdown.RoleLabel(string(storage.RoleAssistant)))
	answer, err := r.controller.SendMessage(ctx, r.state, prompt, func(delta, _ string) {
		fmt.Fprint(r.out, markdown.SubtleStyle.Render(delta))
	})
	fmt.Fprintln(r.out)
	if err != nil {
		r.printError(err)
		return
	}

	rendered, err := r.renderer.Render(answer.Content)
	if err != nil {
		rendered = answer.Content
	}
	fmt.Fprintln(r.out, rendered)
}

func (r *repl) printError(err error) {
	fmt.Fprintln(r.out, markdown.ErrorStyle.Render("Error: "+err.Error()))
}

// splitArgs splits a command line on spaces, keeping double-quoted parts together
func splitArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case r == ' ' && !quoted:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, current.String())
	}
	return args
}
