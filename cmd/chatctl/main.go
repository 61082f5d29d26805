package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chat-llm/internal/domain"
	"chat-llm/internal/service"
)

// cliConfig son los valores por defecto leidos del entorno; los flags los pisan.
type cliConfig struct {
	Server    string `env:"CHAT_SERVER" envDefault:"http://localhost:8080"`
	Token     string `env:"CHAT_TOKEN"`
	JWTSecret string `env:"JWT_SECRET"`
}

func main() {
	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg cliConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Command line client for the chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.Server, "server", cfg.Server, "Chat server base URL")
	root.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Bearer token (defaults to CHAT_TOKEN)")

	client := func() *apiClient { return newAPIClient(cfg.Server, cfg.Token) }

	root.AddCommand(
		newTokenCmd(&cfg),
		newSessionsCmd(client),
		newModelsCmd(client),
		newChatCmd(client),
	)
	return root
}

func newTokenCmd(cfg *cliConfig) *cobra.Command {
	var (
		owner string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := service.NewJWTService(cfg.JWTSecret, ttl).GenerateAccessToken(owner)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "dev-user", "Owner id carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newSessionsCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := client().listSessions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, len(s.Messages), s.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	var title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client().createSession(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "Session title")

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().deleteSession(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func newModelsCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().models(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tREASONING\tDEFAULT")
			for _, m := range resp.Models {
				def := ""
				if m.ID == resp.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", m.ID, m.Name, m.Group, m.Reasoning, def)
			}
			return w.Flush()
		},
	}
}

func newChatCmd(client func() *apiClient) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat loop that streams the answer to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := client()
			if opts.SessionID == "" {
				s, err := c.createSession(ctx, "")
				if err != nil {
					return err
				}
				opts.SessionID = s.ID
				fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", s.ID)
			}
			return chatLoop(ctx, c, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Existing session id (a new one is created when empty)")
	cmd.Flags().StringVar(&opts.ModelID, "model", "", "Model id (server default when empty)")
	cmd.Flags().BoolVar(&opts.Search, "search", false, "Enable web search")
	cmd.Flags().BoolVar(&opts.Reasoning, "reasoning", false, "Enable reasoning")
	return cmd
}

func chatLoop(ctx context.Context, c *apiClient, opts chatOptions, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "/exit" || line == "/quit" {
			return nil
		}
		if line != "" {
			if err := c.chat(ctx, opts, line, func(ev streamEvent) error {
				return printEvent(out, ev)
			}); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func printEvent(out io.Writer, ev streamEvent) error {
	switch service.ChatEventType(ev.Name) {
	case service.EventText, service.EventReasoning:
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		fmt.Fprint(out, p.Text)
	case service.EventStatus:
		var p struct {
			Status string `json:"status"`
		}
		_ = json.Unmarshal(ev.Data, &p)
		fmt.Fprintf(out, "[%s]\n", p.Status)
	case service.EventAnnotation:
		var a domain.Annotation
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			return err
		}
		switch {
		case a.SearchResults != nil:
			for i, r := range a.SearchResults.Results {
				fmt.Fprintf(out, "[%d] %s %s\n", i+1, r.Title, r.URL)
			}
		case a.Info != nil:
			fmt.Fprintf(out, "\n(%s, first chunk after %dms)\n", a.Info.ModelID, a.Info.WaitingTimeMs)
		}
	case service.EventError:
		var p struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(ev.Data, &p)
		return errors.New(p.Error)
	case service.EventFinish:
		fmt.Fprintln(out)
	}
	return nil
}
