package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	xsd "github.com/agentflare-ai/go-xsdcheck"
	"go.yaml.in/yaml/v4"
)

// schemaList collects repeated -schema flags.
type schemaList []string

func (s *schemaList) String() string     { return strings.Join(*s, ",") }
func (s *schemaList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	var schemas schemaList
	flag.Var(&schemas, "schema", "Schema file (repeatable)")
	var (
		configFile = flag.String("config", "", "YAML validation configuration")
		format     = flag.String("format", "text", "Output format: text, json or yaml")
		root       = flag.String("root", "", "Expected document element, as local or {namespace}local")
		strict     = flag.Bool("strict", false, "Enable strict mode")
		verbose    = flag.Bool("verbose", false, "Log schema loading")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: validate -schema a.xsd [-schema b.xsd] [-config cfg.yaml] doc.xml...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(schemas) == 0 || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := xsd.DefaultConfiguration()
	if *configFile != "" {
		var err error
		if cfg, err = xsd.LoadConfiguration(*configFile); err != nil {
			fatal(err)
		}
	}
	if *strict {
		cfg.StrictMode = true
	}

	repo := xsd.NewRepository(
		xsd.WithLogger(logger),
		xsd.WithFuzzyThreshold(cfg.FuzzyThreshold),
		xsd.WithMaxSuggestions(cfg.MaxSuggestions),
	)
	for _, s := range schemas {
		if err := repo.AddSchemaFile(s); err != nil {
			fatal(err)
		}
	}
	if err := repo.Parse(); err != nil {
		fatal(err)
	}
	if err := repo.Resolve(); err != nil {
		fatal(err)
	}
	for _, issue := range repo.Issues() {
		logger.Warn("schema issue", "issue", issue.String())
	}

	var opts []xsd.ValidatorOption
	opts = append(opts, xsd.WithValidatorLogger(logger))
	if *root != "" {
		name, ok := xsd.ParseClark(*root)
		if !ok {
			fatal(fmt.Errorf("invalid -root %q", *root))
		}
		opts = append(opts, xsd.WithRootElement(name))
	}
	v, err := xsd.NewValidator(repo, cfg, opts...)
	if err != nil {
		fatal(err)
	}

	exit := 0
	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			fatal(err)
		}
		res, err := v.ValidateReader(f)
		f.Close()
		if res == nil {
			fatal(err)
		}
		if err := write(os.Stdout, *format, path, res); err != nil {
			fatal(err)
		}
		exit = max(exit, res.ExitCode())
	}
	os.Exit(exit)
}

func write(w io.Writer, format, path string, res *xsd.ValidationResult) error {
	switch format {
	case "text":
		if res.Valid() && len(res.Findings) == 0 {
			_, err := fmt.Fprintf(w, "%s: valid\n", path)
			return err
		}
		for _, f := range res.Findings {
			if _, err := fmt.Fprintf(w, "%s: %s: %s\n", path, f.Severity, f.Error()); err != nil {
				return err
			}
			if f.Suggestion != "" {
				fmt.Fprintf(w, "    suggestion: %s\n", f.Suggestion)
			}
		}
		return nil
	case "json":
		out := res.Map()
		out["file"] = path
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		out := res.Map()
		out["file"] = path
		data, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", data)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "validate:", err)
	os.Exit(2)
}
