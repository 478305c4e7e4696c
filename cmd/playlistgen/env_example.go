package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// envSection groups flags for the generated .env.example.
type envSection struct {
	title string
	notes []string
	flags []string
}

var envSections = []envSection{
	{
		title: "SPOTIFY CONFIGURATION - Required",
		notes: []string{
			"Get these from https://developer.spotify.com/dashboard",
			"The redirect URL must also be registered in the Spotify app",
		},
		flags: []string{
			"spotify-client-id",
			"spotify-client-secret",
			"spotify-playlist-id",
			"spotify-redirect-url",
			"spotify-token-dir",
		},
	},
	{
		title: "BLACKLIST STORAGE",
		notes: []string{
			"sqlite is the default; file keeps a JSON document; postgres needs a DSN",
		},
		flags: []string{
			"storage-driver",
			"storage-sqlite-path",
			"storage-file-path",
			"storage-postgres-dsn",
		},
	},
	{
		title: "PLAYLIST GENERATION",
		notes: []string{
			"Source playlists are comma separated; registered playlists are added at run time",
		},
		flags: []string{
			"source-playlist-ids",
			"saved-tracks-limit",
			"playlist-item-limit",
			"include-target",
			"fetch-concurrency",
		},
	},
	{
		title: "COVER IMAGE",
		flags: []string{
			"cover-text",
			"cover-font-size",
			"cover-font-path",
			"cover-size",
		},
	},
	{
		title: "HTTP SERVER",
		flags: []string{
			"server-host",
			"server-port",
			"server-secure-cookie",
			"action-limit-per-minute",
		},
	},
	{
		title: "LOGGING",
		flags: []string{
			"log-level",
			"log-format",
			"log-file",
		},
	},
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)
	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# playlistgen Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	for _, section := range envSections {
		writeEnvSection(&content, cmd, section)
	}

	content.WriteString("# =============================================================================\n")
	content.WriteString("# QUICK START\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#    playlistgen login                      # Authorize the CLI once\n")
	content.WriteString("#    playlistgen blacklist add artist <id>  # Keep an artist out\n")
	content.WriteString("#    playlistgen generate --dry-run         # Preview a run\n")
	content.WriteString("#    playlistgen serve                      # Web interface and API\n")

	return content.String()
}

func writeEnvSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")
	for _, note := range section.notes {
		fmt.Fprintf(content, "# %s\n", note)
	}

	for _, name := range section.flags {
		flag := cmd.Root().PersistentFlags().Lookup(name)
		if flag == nil {
			continue
		}
		value := getDefaultValueString(cmd, name)
		fmt.Fprintf(content, "# %s (--%s)\n", flag.Usage, name)
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(name), value)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	f := cmd.Root().PersistentFlags().Lookup(flagName)
	if f == nil {
		return ""
	}
	// String slices render their empty default as "[]".
	if f.Value.Type() == "stringSlice" {
		return strings.Trim(f.DefValue, "[]")
	}
	return f.DefValue
}
