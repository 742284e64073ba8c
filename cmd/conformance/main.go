package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	xsd "github.com/agentflare-ai/go-xsdcheck"
)

func main() {
	var (
		suiteDir      = flag.String("suite", "/tmp/xsd-test-suite", "Path to the W3C XML Schema test suite")
		pattern       = flag.String("pattern", "msMeta/*_w3c.xml", "Glob for test metadata files, relative to -suite")
		testFile      = flag.String("file", "", "Run a single test metadata file")
		configFile    = flag.String("config", "", "YAML validation configuration")
		outputFile    = flag.String("output", "", "Write the report to a file instead of stdout")
		failures      = flag.Int("failures", 20, "Number of failed tests listed in the report")
		analyze       = flag.Bool("analyze", false, "Append a failure analysis grouped by rule category")
		verbose       = flag.Bool("verbose", false, "Log schema loading at debug level")
		autoDownload  = flag.Bool("auto-download", false, "Download the test suite if it is missing")
		forceDownload = flag.Bool("force-download", false, "Re-download even if cached (implies -auto-download)")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *forceDownload {
		*autoDownload = true
		os.Remove(filepath.Join(*suiteDir, downloadMarker))
	}
	if *testFile == "" {
		downloaded, err := ensureTestSuite(*suiteDir, *autoDownload)
		if err != nil {
			fatal(err)
		}
		if downloaded {
			fmt.Printf("Note: downloaded test suite is cached for %v\n\n", cacheDuration)
		}
	}

	cfg := xsd.DefaultConfiguration()
	if *configFile != "" {
		var err error
		if cfg, err = xsd.LoadConfiguration(*configFile); err != nil {
			fatal(err)
		}
	}

	runner := xsd.NewConformanceRunner(*suiteDir, cfg)
	runner.Logger = logger
	if *testFile != "" {
		if err := runner.RunMetadataFile(*testFile); err != nil {
			fatal(err)
		}
	} else if err := runner.RunAll(*pattern); err != nil {
		fatal(err)
	}

	report := runner.Report(*failures)
	if *analyze {
		report += "\n" + xsd.FailureReport(xsd.AnalyzeFailures(runner.Results))
	}
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
			fatal(err)
		}
		fmt.Printf("Report written to: %s\n", *outputFile)
	} else {
		fmt.Print(report)
	}

	if s := runner.Summary(); s.Passed < s.Total {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "conformance:", err)
	os.Exit(2)
}
