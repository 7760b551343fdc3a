// Command workdesk-cli is a terminal client for a workdesk server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

type options struct {
	server  string
	name    string
	role    string
	persona string
	plain   bool
	watch   bool
	width   int
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "workdesk-cli",
		Short: "Chat with the workdesk assistant from the terminal",
		Long: `Logs in to a workdesk server, opens the chat view and sends each line
you type as a message. Lines starting with / are commands:

  /personas        list the personas you may pick
  /persona <id>    switch persona (resets the chat)
  /clear           start over with the current persona
  /attach <path>   attach a PDF or image to the next message
  /suggest         show suggested follow-ups
  /quit            log out and exit

Press Ctrl-C while a reply is streaming to cancel it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8080", "workdesk server URL")
	flags.StringVar(&opts.name, "name", os.Getenv("USER"), "your name")
	flags.StringVar(&opts.role, "role", string(domain.RoleEmployee), "your role (Employee, Manager, HR Admin, Executive)")
	flags.StringVar(&opts.persona, "persona", "", "persona to start with")
	flags.BoolVar(&opts.plain, "plain", false, "stream raw text instead of rendering markdown")
	flags.BoolVar(&opts.watch, "watch", true, "listen for pushed suggestions over a websocket")
	flags.IntVar(&opts.width, "width", 100, "markdown word wrap width")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	renderer, err := NewRenderer(out, opts.plain, opts.width)
	if err != nil {
		return err
	}
	client := NewClient(opts.server)

	if _, err := client.Login(ctx, opts.name, domain.UserRole(opts.role)); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer client.Logout(context.Background())

	state, err := client.Navigate(ctx, domain.ViewChat)
	if err != nil {
		return fmt.Errorf("failed to open chat: %w", err)
	}
	if opts.persona != "" {
		if state, err = client.SelectPersona(ctx, domain.PersonaID(opts.persona)); err != nil {
			return fmt.Errorf("failed to select persona: %w", err)
		}
	}

	if opts.watch {
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			err := client.Listen(listenCtx, func(u domain.Update) {
				if u.Type == domain.UpdateSuggestions {
					renderer.Suggestions(u.Suggestions)
				}
			})
			if err != nil {
				renderer.Error(fmt.Errorf("push updates unavailable: %w", err))
			}
		}()
	}

	s := &shell{ctx: ctx, client: client, renderer: renderer, persona: state.Persona}
	s.showTranscript(state)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := s.handle(line); quit {
			return nil
		}
	}
}

// shell holds the interactive session state.
type shell struct {
	ctx      context.Context
	client   *Client
	renderer *Renderer
	persona  domain.Persona
}

func (s *shell) showTranscript(st *workspaceState) {
	s.persona = st.Persona
	for _, e := range st.Transcript {
		s.renderer.Entry(e, s.persona.Title)
	}
}

// handle runs one input line and reports whether the shell should exit.
func (s *shell) handle(line string) bool {
	cmd, arg := parseCommand(line)
	switch cmd {
	case "":
		s.send(line)
	case "quit", "exit":
		return true
	case "personas":
		personas, err := s.client.Personas(s.ctx)
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		for _, p := range personas {
			marker := " "
			if p.ID == s.persona.ID {
				marker = "*"
			}
			fmt.Fprintf(s.renderer.out, "%s %-14s %s\n", marker, p.ID, p.Title)
		}
	case "persona":
		if arg == "" {
			s.renderer.Error(errors.New("usage: /persona <id>"))
			return false
		}
		st, err := s.client.SelectPersona(s.ctx, domain.PersonaID(arg))
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		s.showTranscript(st)
	case "clear":
		st, err := s.client.Clear(s.ctx)
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		s.showTranscript(st)
	case "attach":
		if arg == "" {
			s.renderer.Error(errors.New("usage: /attach <path>"))
			return false
		}
		att, err := s.client.Attach(s.ctx, arg)
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		s.renderer.Info("attached %s (%s); it will be sent with your next message", att.Filename, att.MIMEType)
	case "suggest":
		items, err := s.client.Suggestions(s.ctx)
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		s.renderer.Suggestions(items)
	default:
		s.renderer.Error(fmt.Errorf("unknown command /%s", cmd))
	}
	return false
}

// send streams one turn. Ctrl-C cancels the turn, not the shell.
func (s *shell) send(text string) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})
	defer func() {
		signal.Stop(interrupt)
		close(done)
	}()
	go func() {
		select {
		case <-interrupt:
			if err := s.client.Cancel(context.Background()); err != nil {
				s.renderer.Error(err)
			}
		case <-done:
		}
	}()

	err := s.client.Send(s.ctx, text, func(u domain.Update) {
		s.renderer.Update(u, s.persona.Title)
	})
	if err != nil {
		s.renderer.Error(err)
	}
}

// parseCommand splits "/name arg" input. Plain text yields an empty name.
func parseCommand(line string) (string, string) {
	if !strings.HasPrefix(line, "/") {
		return "", ""
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}
