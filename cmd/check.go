package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hb-chen/flowdesign/internal/editor"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/nodedefaults"
	"github.com/hb-chen/flowdesign/internal/topology"
	"github.com/hb-chen/flowdesign/internal/validation"
)

var (
	checkOutput, checkDefaults string
)

var errGraphInvalid = errors.New("graph is invalid")

// CheckResult is what `flowdesign check` reports for one graph file
type CheckResult struct {
	File     string                  `json:"file" yaml:"file"`
	Valid    bool                    `json:"isValid" yaml:"isValid"`
	Nodes    []validation.NodeReport `json:"nodes" yaml:"nodes"`
	Topology topology.Report         `json:"topology" yaml:"topology"`
	Compile  string                  `json:"compileError,omitempty" yaml:"compileError,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check <graph.json>",
	Short: "Validate a graph document",
	Long: `Load a graph document, run every node validation and the structural
checks, and report what is wrong. Exits non-zero when the graph is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := checkFile(args[0], checkDefaults)
		if err != nil {
			return err
		}

		if err := writeCheckResult(cmd.OutOrStdout(), checkOutput, res); err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("%s: %w", args[0], errGraphInvalid)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "text", "output format: text, json, yaml")
	checkCmd.Flags().StringVar(&checkDefaults, "defaults", "", "node defaults file")

	rootCmd.AddCommand(checkCmd)
}

func checkFile(path, defaultsFile string) (*CheckResult, error) {
	doc, err := flow.LoadDocument(path)
	if err != nil {
		return nil, err
	}

	defaults, err := nodedefaults.Load(defaultsFile)
	if err != nil {
		return nil, err
	}

	session, err := editor.New(editor.Options{Defaults: defaults})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	session.Load(doc)
	session.FlushValidation()

	res := &CheckResult{
		File:     path,
		Nodes:    session.Invalid(),
		Topology: topology.Check(session.Nodes(), session.Edges()),
	}
	if _, err := topology.Compile(session.Nodes(), session.Edges()); err != nil {
		res.Compile = err.Error()
	}
	res.Valid = len(res.Nodes) == 0 && res.Topology.Valid && res.Compile == ""
	return res, nil
}

func writeCheckResult(w io.Writer, format string, res *CheckResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(res)
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	for _, n := range res.Nodes {
		domains := make([]string, 0, len(n.Domains))
		for d := range n.Domains {
			domains = append(domains, string(d))
		}
		sort.Strings(domains)
		for _, d := range domains {
			r := n.Domains[validation.Domain(d)]
			if r.Valid {
				continue
			}
			for _, e := range r.Errors {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.NodeID, d, e.Type, e.Message)
			}
		}
	}
	for _, issue := range res.Topology.Issues {
		target := issue.NodeID
		if issue.EdgeID != "" {
			target = issue.EdgeID
		}
		fmt.Fprintf(w, "%s\ttopology\t%s\t%s\n", target, issue.Code, issue.Message)
	}
	if res.Compile != "" {
		fmt.Fprintf(w, "-\tcompile\t%s\n", res.Compile)
	}
	if res.Valid {
		fmt.Fprintf(w, "%s: ok\n", res.File)
	}
	return nil
}
