package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/merkledrop-labs/merkledrop-go/pkg/builder"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "merkledrop-builder",
		Usage: "Build airdrop commitment artifacts from an entitlement list",
		Description: `Consumes a distributor's entitlement list and produces the published
commitment artifacts:
- the root digest committing to every (recipient, amount) record
- one proof bundle per record, self-checked against the root

The build is all-or-nothing: any defect in the input list aborts the run
before anything is written.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to the entitlement list JSON",
				EnvVars:  []string{"DROP_INPUT"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "proofs.json",
				Usage:   "Path for the proof bundle JSON",
				EnvVars: []string{"DROP_OUTPUT"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{"DROP_VERBOSE"},
			},
		},
		Action: runBuilder,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runBuilder(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	artifact, err := builder.BuildFromFile(c.String("input"), l)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := artifact.WriteBundles(c.String("output")); err != nil {
		return fmt.Errorf("failed to write proof bundles: %w", err)
	}

	fmt.Printf("Root: %s\n", artifact.RootHex())
	fmt.Printf("Records: %d\n", len(artifact.Bundles))
	fmt.Printf("Proof bundles written to %s\n", c.String("output"))
	return nil
}
