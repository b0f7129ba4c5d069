package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mhollis/airscore/internal/ontology"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage airscore configuration",
	Long: `Manage airscore configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (AIRSCORE_*)
3. Config file (~/.airscore/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the built-in ontology and personas",
	Long:  `Display the built-in aspect ontology and persona profiles as YAML, useful as a starting point for --ontology and --personas files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		ontoYAML, err := yaml.Marshal(ontology.DefaultOntology())
		if err != nil {
			return fmt.Errorf("error marshaling ontology: %w", err)
		}
		fmt.Println("# Ontology (--ontology)")
		fmt.Println(string(ontoYAML))

		personas := ontology.DefaultPersonas()
		var out struct {
			Personas []ontology.Persona `yaml:"personas"`
		}
		for _, p := range personas.ByID {
			out.Personas = append(out.Personas, p)
		}
		personaYAML, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("error marshaling personas: %w", err)
		}
		fmt.Println("# Personas (--personas)")
		fmt.Println(string(personaYAML))

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.airscore/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.airscore"
		configPath := configDir + "/config.yaml"

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'airscore config show' to view defaults, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		content := `# airscore configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (AIRSCORE_*, OPENAI_API_KEY)
#   3. This config file
#   4. Built-in defaults

verbose: false

# db: airscore.db
# cache-dir: .airscore-cache
# extractor: openai
# extractor-model: gpt-4o-mini
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("error writing config file: %w", err)
		}

		fmt.Printf("Created %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
