package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"bot-builder-go/internal/database"
	"bot-builder-go/internal/diff"
	"bot-builder-go/internal/program"
	"bot-builder-go/internal/quickstrategy"
	"bot-builder-go/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func openStore() (*database.DocumentStore, error) {
	db, err := database.NewDatabase(&current.cfg)
	if err != nil {
		return nil, err
	}
	return database.NewDocumentStore(db), nil
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List saved workspace documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		names, err := store.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <name> <file>",
	Short: "Validate an XML program file and save it as a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		g, err := program.XMLCodec{}.Decode(data, program.DefaultTypes())
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Save(args[0], data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d blocks)\n", args[0], g.Len())
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Print a saved document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := store.Load(args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand <strategy>",
	Short: "Expand a quick strategy into a saved document",
	Long: `Expands a quick strategy with the given form values and merges the result into a saved
document. Values are passed as --set name=value. A document that does not exist yet starts
from the blank program.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetString("document")
		if document == "" {
			document = current.cfg.Workspace.DefaultDocument
		}
		values, _ := cmd.Flags().GetStringToString("set")
		fields := make(map[string]any, len(values))
		for k, v := range values {
			fields[k] = v
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		manager := session.NewManager(current.log, store, nil, nil)
		s, err := manager.Open(document)
		if err != nil {
			return err
		}
		defer manager.Close(s.ID)

		frag, err := current.engine.Insert(s.Workspace, args[0], fields)
		if err != nil {
			var verr *quickstrategy.ValidationError
			if errors.As(err, &verr) {
				for _, f := range verr.Fields {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Field, f.Message)
				}
			}
			return err
		}
		if err := manager.Save(s.ID, document); err != nil {
			return err
		}
		current.log.Info("Strategy expanded", zap.String("strategy", args[0]), zap.String("document", document))
		fmt.Fprintf(cmd.OutOrStdout(), "added %d blocks to %s, roots: %v\n", frag.Len(), document, frag.TopIDs())
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <before> <after>",
	Short: "Compare two saved documents line by line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		before, err := store.Load(args[0])
		if err != nil {
			return err
		}
		after, err := store.Load(args[1])
		if err != nil {
			return err
		}
		hunks := diff.Documents(string(before), string(after))
		if !diff.Changed(hunks) {
			fmt.Fprintln(cmd.OutOrStdout(), "documents are identical")
			return nil
		}
		out := cmd.OutOrStdout()
		for _, h := range hunks {
			for _, l := range h.Lines {
				switch l.Type {
				case diff.LineAdded:
					fmt.Fprintf(out, "+ %s\n", l.Text)
				case diff.LineRemoved:
					fmt.Fprintf(out, "- %s\n", l.Text)
				default:
					fmt.Fprintf(out, "  %s\n", l.Text)
				}
			}
		}
		return nil
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks <name>",
	Short: "Count the blocks of a saved document by type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := store.Load(args[0])
		if err != nil {
			return err
		}
		g, err := program.XMLCodec{}.Decode(data, program.DefaultTypes())
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for b := range g.Blocks() {
			counts[b.Type]++
		}
		for _, t := range slices.Sorted(maps.Keys(counts)) {
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %d\n", t, counts[t])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd, importCmd, exportCmd, expandCmd, diffCmd, blocksCmd)
	expandCmd.Flags().StringP("document", "d", "", "Document to expand into (defaults to workspace.default_document)")
	expandCmd.Flags().StringToString("set", nil, "Form value as name=value, repeatable")
}
