package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAgentsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured agents and their handoff edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := st.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tBACKEND\tCAPABILITIES\tENTRY")
			for i, a := range cfg.Agents {
				backend := "model=" + a.Model
				if a.Remote {
					backend = "remote=" + cfg.RemoteAgentID(a)
				}

				entry := ""
				switch {
				case a.Entry, cfg.Router.EntryAgent == a.Name:
					entry = "yes"
				case i == 0 && !hasEntry(st):
					entry = "yes"
				}

				caps := strings.Join(a.Capabilities, ",")
				if caps == "" {
					caps = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, backend, caps, entry)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(cfg.Handoffs) == 0 {
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout())
			w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tTARGET\tDESCRIPTION")
			for _, h := range cfg.Handoffs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Source, h.Target, h.Description)
			}
			return w.Flush()
		},
	}
}

func hasEntry(st *state) bool {
	if st.cfg.Router.EntryAgent != "" {
		return true
	}
	for _, a := range st.cfg.Agents {
		if a.Entry {
			return true
		}
	}
	return false
}
