// Command dialogue-lint checks authored dialogue files for targets that
// will not resolve at runtime and for events no path can reach.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
)

type fileReport struct {
	Path   string           `json:"path"`
	Events int              `json:"events,omitempty"`
	Error  string           `json:"error,omitempty"`
	Issues []dialogue.Issue `json:"issues"`
}

func lintFile(path string) fileReport {
	r := fileReport{Path: path, Issues: []dialogue.Issue{}}

	doc, err := dialogue.LoadDocument(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	g, err := doc.Graph()
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Events = g.Len()
	if issues := dialogue.Lint(g); issues != nil {
		r.Issues = issues
	}
	return r
}

func main() {
	var asJSON bool
	flag.BoolVar(&asJSON, "json", false, "print reports as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-json] FILE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	reports := make([]fileReport, 0, flag.NArg())
	for _, path := range flag.Args() {
		r := lintFile(path)
		if r.Error != "" || len(r.Issues) > 0 {
			failed = true
		}
		reports = append(reports, r)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
	} else {
		for _, r := range reports {
			switch {
			case r.Error != "":
				fmt.Printf("%s: %s\n", r.Path, r.Error)
			case len(r.Issues) == 0:
				fmt.Printf("%s: ok (%d events)\n", r.Path, r.Events)
			default:
				for _, issue := range r.Issues {
					fmt.Printf("%s: %s: %s\n", r.Path, issue.Kind, issue.Message)
				}
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}
