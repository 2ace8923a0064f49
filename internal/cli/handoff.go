package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrouter/api"
	"github.com/hupe1980/agentrouter/client"
	"github.com/hupe1980/agentrouter/internal/app"
	"github.com/hupe1980/agentrouter/router"
)

// DefaultOpeningTask starts every console conversation.
const DefaultOpeningTask = "A customer is on the line."

func newHandoffCmd(st *state) *cobra.Command {
	var (
		task      string
		sessionID string
		url       string
	)

	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Talk to the agents from the terminal",
		Long: "handoff runs an interactive conversation. Every turn prints the answering agent; " +
			"type exit or send EOF to leave. With --url the turns go to a running server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var r api.Router
			if url != "" {
				c, err := client.New(url, func(o *client.Options) {
					o.SessionHeader = st.cfg.Server.SessionHeader
					o.Logger = st.logger
				})
				if err != nil {
					return err
				}
				r = remoteRouter{client: c}
			} else {
				a, err := app.New(ctx, st.cfg, func(o *app.Options) { o.Logger = st.logger })
				if err != nil {
					return err
				}
				defer a.Close()
				r = a.Router
			}

			return runConsole(ctx, r, cmd.InOrStdin(), cmd.OutOrStdout(), task, sessionID)
		},
	}

	cmd.Flags().StringVar(&task, "task", DefaultOpeningTask, "opening task of the conversation")
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&url, "url", "", "base url of a running agentrouter server")

	return cmd
}

// runConsole routes task, prints the answer and then reads the next task from
// in until EOF or "exit". Failed turns are reported and the conversation goes
// on with the same session.
func runConsole(ctx context.Context, r api.Router, in io.Reader, out io.Writer, task, sessionID string) error {
	scanner := bufio.NewScanner(in)

	for {
		res, err := r.Route(ctx, task, sessionID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			fmt.Fprintf(out, "error\t: %v\n", err)
		default:
			sessionID = res.SessionID
			printTurn(out, res)
		}

		for {
			fmt.Fprint(out, "User\t\t: ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			task = strings.TrimSpace(scanner.Text())
			if task != "" {
				break
			}
		}
		if strings.EqualFold(task, "exit") {
			return nil
		}
	}
}

func printTurn(out io.Writer, res *router.Result) {
	for i, edge := range res.Turn.Handoffs {
		if i < len(res.Turn.Interim) && res.Turn.Interim[i] != "" {
			fmt.Fprintf(out, "%s\t: %s\n", edge.Source, res.Turn.Interim[i])
		}
	}

	responder := res.Turn.Responder
	if responder == "" {
		responder = "Agent"
	}
	fmt.Fprintf(out, "%s\t: %s\n", responder, res.Reply)
}

// remoteRouter sends turns to a running server.
type remoteRouter struct {
	client *client.Client
}

func (r remoteRouter) Route(ctx context.Context, task, sessionID string) (*router.Result, error) {
	reply, err := r.client.Chat(ctx, task, sessionID)
	if err != nil {
		return nil, err
	}
	return &router.Result{Reply: reply.Response, SessionID: reply.SessionID}, nil
}
