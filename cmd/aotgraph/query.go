package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aotgraph/aotgraph"
)

var (
	flagLimit  int
	flagOffset int
	flagLabels string
	flagModel  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the dependency graph",
	Long:  "Run queries against an ingested graph. Class, table, method, and field names are the AOT short names; node identifiers are model-qualified paths such as ApplicationSuite/CustTable/creditMax.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(readersCmd)
	queryCmd.AddCommand(writersCmd)
	queryCmd.AddCommand(chainCmd)
	queryCmd.AddCommand(subclassesCmd)
	queryCmd.AddCommand(methodsCmd)
	queryCmd.AddCommand(fieldsCmd)
	queryCmd.AddCommand(nodeCmd)
	queryCmd.AddCommand(textCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(summaryCmd)
}

// openQuery opens the graph database read side from the --db flag or
// config file.
func openQuery(cmd *cobra.Command) (*aotgraph.Engine, *aotgraph.QueryBuilder, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database not found: %s (run 'aotgraph ingest' first)", cfg.DB)
	}
	engine, err := aotgraph.New(cfg.DB, aotgraph.WithLogger(newLogger(cfg)))
	if err != nil {
		return nil, nil, err
	}
	return engine, engine.Query(), nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var callersCmd = &cobra.Command{
	Use:   "callers <class> <method>",
	Short: "Methods calling class.method",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		refs, err := q.CallersOf(args[0], args[1])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "callers", Results: cliMethodRefs(refs)})
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees <class> <method>",
	Short: "Methods called by class.method",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		refs, err := q.CalleesOf(args[0], args[1])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "callees", Results: cliMethodRefs(refs)})
	},
}

var readersCmd = &cobra.Command{
	Use:   "readers <table> <field>",
	Short: "Methods reading table.field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		refs, err := q.ReadersOf(args[0], args[1])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "readers", Results: cliMethodRefs(refs)})
	},
}

var writersCmd = &cobra.Command{
	Use:   "writers <table> <field>",
	Short: "Methods writing table.field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		refs, err := q.WritersOf(args[0], args[1])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "writers", Results: cliMethodRefs(refs)})
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain <class>",
	Short: "Inheritance chain of a class, nearest superclass first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		chain, err := q.InheritanceChain(args[0])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "chain", Results: cliNodes(chain)})
	},
}

var subclassesCmd = &cobra.Command{
	Use:   "subclasses <class>",
	Short: "Classes extending a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		nodes, err := q.SubclassesOf(args[0])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "subclasses", Results: cliNodes(nodes)})
	},
}

var methodsCmd = &cobra.Command{
	Use:   "methods <class>",
	Short: "Methods declared by a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		nodes, err := q.MethodsOf(args[0])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "methods", Results: cliNodes(nodes)})
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields <table>",
	Short: "Fields declared by a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		nodes, err := q.FieldsOf(args[0])
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "fields", Results: cliNodes(nodes)})
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node <id>",
	Short: "Look up one node by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		n, err := q.NodeByID(args[0])
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("no node with id %q", args[0])
		}
		return outputResult(CLIResult{Query: "node", Results: cliNode(n)})
	},
}

var textCmd = &cobra.Command{
	Use:   "text <id>",
	Short: "Print the persisted source text of a method node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		body, err := q.NodeText(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, body)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Glob search on node names ('*' is the wildcard)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		filter := aotgraph.NodeFilter{Model: flagModel}
		if flagLabels != "" {
			for _, l := range strings.Split(flagLabels, ",") {
				filter.Labels = append(filter.Labels, strings.TrimSpace(l))
			}
		}
		page := aotgraph.Pagination{Offset: flagOffset, Limit: flagLimit}
		res, err := q.SearchNodes(args[0], filter, page)
		if err != nil {
			return err
		}
		return outputResult(CLIResult{
			Query:      "search",
			Results:    cliNodes(res.Items),
			TotalCount: &res.TotalCount,
		})
	},
}

func init() {
	searchCmd.Flags().StringVar(&flagLabels, "labels", "", "comma-separated label filter (e.g. Class,Table)")
	searchCmd.Flags().StringVar(&flagModel, "model", "", "restrict to one model")
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Node and edge counts across the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, q, err := openQuery(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		s, err := q.GraphSummary()
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Query: "summary", Results: cliSummary(s)})
	},
}
