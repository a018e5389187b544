package cmd

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), readBuildInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func readBuildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// printVersion prints the ldflags metadata. Builds without ldflags fall back to
// the VCS stamp the go command embeds.
func printVersion(w io.Writer, info *debug.BuildInfo) {
	commit, built, goVersion := CommitSHA, BuildDate, "unknown"
	if info != nil {
		goVersion = info.GoVersion
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && built == "unknown":
				built = s.Value
			}
		}
	}

	fmt.Fprintf(w, "face-search %s\n", Version)
	fmt.Fprintf(w, "  Commit: %s\n", commit)
	fmt.Fprintf(w, "  Built:  %s\n", built)
	fmt.Fprintf(w, "  Go:     %s\n", goVersion)
}
