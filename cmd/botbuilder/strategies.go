package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"bot-builder-go/internal/quickstrategy"
	"github.com/spf13/cobra"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the quick strategy templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFIELDS")
		for t := range current.engine.ListTemplates() {
			fmt.Fprintf(w, "%s\t%s\t%d\n", t.ID, t.Name, len(t.Form))
		}
		return w.Flush()
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <strategy>",
	Short: "Render the description of a quick strategy as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, _ := cmd.Flags().GetString("tab")
		tutorial, _ := cmd.Flags().GetBool("tutorial")
		mobile, _ := cmd.Flags().GetBool("mobile")

		var form any
		if tab == quickstrategy.TabTradeParameters {
			t, err := current.engine.Template(args[0])
			if err != nil {
				return err
			}
			form = t.Form
		}
		content, err := current.engine.RenderDescription(args[0], tab, form,
			quickstrategy.RenderOptions{Tutorial: tutorial, Mobile: mobile})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(content)
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().String("tab", quickstrategy.TabTradeParameters, "Dialog tab to render (TRADE_PARAMETERS or LEARN_MORE)")
	describeCmd.Flags().Bool("tutorial", false, "Render for the tutorials page")
	describeCmd.Flags().Bool("mobile", false, "Render for a mobile screen")
}
