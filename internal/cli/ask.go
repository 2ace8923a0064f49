package cli

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrouter/client"
)

func newAskCmd(st *state) *cobra.Command {
	var (
		url   string
		field string
	)

	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "POST a question to a JSON endpoint and print the answer",
		Long: "ask sends {\"<field>\": \"<text>\"} to --url and prints the JSON answer. " +
			"Failed requests print {\"status\": \"error\", ...} instead.",
		Example: `  agentrouter ask "Where is order 42?"
  agentrouter ask --url https://example.com/api/v1/chat_response --field question "Hotels in New York?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{field: strings.Join(args, " ")}

			httpClient := &http.Client{Timeout: st.cfg.Server.WriteTimeout}
			out, err := client.PostJSON(cmd.Context(), httpClient, url, payload)
			if err != nil {
				st.logger.Error("ask.failed", "url", url, "error", err)
				out = client.ErrorResult(err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8000/chat", "endpoint to post to")
	cmd.Flags().StringVar(&field, "field", "message", "JSON field carrying the text")

	return cmd
}
