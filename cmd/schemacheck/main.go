package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	xsd "github.com/agentflare-ai/go-xsdcheck"
	"go.yaml.in/yaml/v4"
)

func main() {
	var (
		types   = flag.Bool("types", false, "List every indexed component")
		find    = flag.String("find", "", "Resolve a type name (prefix:Local, {ns}Local or Local)")
		deps    = flag.String("deps", "", "Print the dependency tree of a type")
		depth   = flag.Int("depth", 3, "Depth of -deps")
		verbose = flag.Bool("verbose", false, "Log schema loading")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: schemacheck [-types] [-find name] [-deps name] schema.xsd...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	repo := xsd.NewRepository(xsd.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))))
	for _, path := range flag.Args() {
		if err := repo.AddSchemaFile(path); err != nil {
			fatal(err)
		}
	}
	if err := repo.Parse(); err != nil {
		fatal(err)
	}
	if err := repo.Resolve(); err != nil {
		fatal(err)
	}

	exit := 0
	for _, issue := range repo.Issues() {
		fmt.Println(issue.String())
		if issue.Severity == xsd.SeverityError {
			exit = 1
		}
	}
	for _, cycle := range repo.ImportCycles() {
		fmt.Printf("import cycle: %s\n", strings.Join(cycle, " -> "))
	}
	if len(repo.Issues()) == 0 {
		fmt.Println("Schema is valid")
	}

	if *types {
		names, err := repo.AllTypeNames()
		if err != nil {
			fatal(err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	}
	if *find != "" {
		res, err := repo.FindType(*find)
		if err != nil {
			fatal(err)
		}
		if !res.Resolved {
			fmt.Println(res.ErrorMessage)
			exit = 1
		} else {
			fmt.Printf("%s (%s) in %s\n", res.Name.Clark(), res.Category, res.SchemaFile)
		}
	}
	if *deps != "" {
		tree, err := repo.Dependencies(*deps, *depth)
		if err != nil {
			fatal(err)
		}
		out, err := yaml.Marshal(tree)
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(out)
	}
	os.Exit(exit)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "schemacheck:", err)
	os.Exit(2)
}
