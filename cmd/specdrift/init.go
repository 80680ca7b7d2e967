package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/specdrift/specdrift/internal/patterns"
)

const starterConfig = `# specdrift identifier-pattern configuration.
# Each entry maps an identifier prefix to its matching rules. "pattern" is
# the strict form used when tagging implementations; "flexible_pattern" is
# the permissive form used for cross-referencing free text.
patterns:
  TC-:
    name: test-case
    pattern: 'TC-[A-Z][A-Z0-9]*-\d{3,}'
    flexible_pattern: 'TC-[A-Za-z0-9][A-Za-z0-9-]*'
    primary_files:
      - docs/test-cases.md
  FT-:
    name: feature
    pattern: 'FT-[A-Z][A-Z0-9]*-\d{3,}'
    flexible_pattern: 'FT-[A-Za-z0-9][A-Za-z0-9-]*'
    primary_files:
      - docs/features.md
    relationship_targets:
      - TC-
  REQ-:
    name: requirement
    pattern: 'REQ-[A-Z][A-Z0-9]*-\d{3,}'
    flexible_pattern: 'REQ-[A-Za-z0-9][A-Za-z0-9-]*'
    primary_files:
      - docs/requirements.md

validation:
  relationships: true
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [root]",
	Short: "Write a starter " + patterns.ConfigFileName + " configuration",
	Long: `Init writes a starter ` + patterns.ConfigFileName + ` into the project root with
the built-in identifier patterns spelled out, ready to edit.

Without a configuration file specdrift uses the same defaults, so init is
only needed when the project wants custom prefixes or documentation paths.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		path := filepath.Join(root, patterns.ConfigFileName)
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := os.WriteFile(path, []byte(starterConfig), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		fmt.Printf("%s wrote %s\n", color.GreenString("✓"), path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}
