// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/regmap/core"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		reportFailure(app, err)
		stop()
		os.Exit(1)
	}
}

// reportFailure prints err with its kind, as JSON when --json was given.
func reportFailure(app *cli.App, err error) {
	failure := core.Describe(err)
	w := app.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	if env, ok := app.Metadata[envKey].(*appEnv); ok && env.json {
		enc := json.NewEncoder(w)
		if encErr := enc.Encode(failure); encErr == nil {
			return
		}
	}
	fmt.Fprintf(w, "error [%s]: %s\n", failure.Kind, failure.Message)
}

func newApp() *cli.App {
	fileFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read the regulation text from `PATH` instead of its registered source",
		}
	}
	jsonFlag := func() cli.Flag {
		return &cli.BoolFlag{
			Name:  "json",
			Usage: "Print machine-readable JSON",
		}
	}
	progressFlag := func() cli.Flag {
		return &cli.BoolFlag{
			Name:  "progress",
			Usage: "Report rescoring progress on stderr",
		}
	}

	return &cli.App{
		Name:  "regmap",
		Usage: "Map regulatory text to compliance framework controls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file; environment variables override it",
				EnvVars: []string{"REGMAP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics to `PATH` on exit",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create or upgrade the schema and seed the catalogue",
				Action: migrateCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Register a regulation document",
				ArgsUsage: "PATH",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Regulation name",
						Required: true,
					},
					jsonFlag(),
				},
			},
			{
				Name:   "list",
				Usage:  "List registered regulations",
				Action: listCommand,
				Flags:  []cli.Flag{jsonFlag()},
			},
			{
				Name:      "parse",
				Usage:     "Split a regulation into requirements",
				ArgsUsage: "REGULATION_ID",
				Action:    parseCommand,
				Flags:     []cli.Flag{fileFlag(), jsonFlag()},
			},
			{
				Name:      "tag",
				Usage:     "Tag pending requirements by keyword",
				ArgsUsage: "REGULATION_ID",
				Action:    tagCommand,
				Flags:     []cli.Flag{jsonFlag()},
			},
			{
				Name:      "map",
				Usage:     "Map tagged requirements to controls by keyword",
				ArgsUsage: "REGULATION_ID",
				Action:    mapCommand,
				Flags:     []cli.Flag{jsonFlag()},
			},
			{
				Name:      "rescore",
				Usage:     "Rescore keyword mappings by embedding similarity",
				ArgsUsage: "REGULATION_ID",
				Action:    rescoreCommand,
				Flags: []cli.Flag{
					jsonFlag(),
					progressFlag(),
				},
			},
			{
				Name:      "run",
				Usage:     "Run every stage, resuming where an earlier run stopped",
				ArgsUsage: "REGULATION_ID",
				Action:    runCommand,
				Flags: []cli.Flag{
					fileFlag(),
					jsonFlag(),
					progressFlag(),
				},
			},
			{
				Name:   "warm",
				Usage:  "Embed every catalogue control ahead of rescoring",
				Action: warmCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of control texts per embedding request",
						Value: 32,
					},
					progressFlag(),
					jsonFlag(),
				},
			},
			{
				Name:      "results",
				Usage:     "Show the control mappings of a regulation",
				ArgsUsage: "REGULATION_ID",
				Action:    resultsCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Hide mappings scoring below this (default from config)",
					},
					&cli.BoolFlag{
						Name:  "grouped",
						Usage: "One row per mapping with its tags collapsed",
					},
					jsonFlag(),
				},
			},
			{
				Name:      "suggest",
				Usage:     "Rank catalogue controls against free text",
				ArgsUsage: "TEXT...",
				Action:    suggestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of controls (0 for all)",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Hide controls scoring below this",
						Value: 0,
					},
					jsonFlag(),
				},
			},
			{
				Name:      "status",
				Usage:     "Show how far a regulation has progressed",
				ArgsUsage: "REGULATION_ID",
				Action:    statusCommand,
				Flags:     []cli.Flag{jsonFlag()},
			},
			{
				Name:      "delete",
				Usage:     "Delete a regulation with its requirements and mappings",
				ArgsUsage: "REGULATION_ID",
				Action:    deleteCommand,
			},
		},
	}
}
