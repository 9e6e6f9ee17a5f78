package app

import (
	"fmt"
	"io"

	"github.com/phillarmonic/figlet/figletlib"
	"github.com/spf13/cobra"
)

// Domain: Version Display
// This file contains logic for displaying version information

func (a *App) createVersionCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain {
				return writeVersion(cmd.OutOrStdout(), a.version, a.commit, a.date)
			}
			return ShowVersion(cmd.OutOrStdout(), a.version, a.commit, a.date)
		},
	}
	cmd.Flags().BoolVar(&plain, "short", false, "Print only the version lines")
	return cmd
}

// ShowVersion displays version information with ASCII art
func ShowVersion(w io.Writer, version, commit, date string) error {
	loader := figletlib.NewEmbededLoader()
	font, err := loader.GetFontByName("standard")
	if err != nil {
		return err
	}

	startColor, _ := figletlib.ParseColor("#00FF95")
	endColor, _ := figletlib.ParseColor("#00C2FF")
	gradientConfig := figletlib.ColorConfig{
		Mode:       figletlib.ColorModeGradient,
		StartColor: startColor,
		EndColor:   endColor,
	}

	fmt.Fprintln(w)
	figletlib.FPrintColoredMsg(w, "credstore", font, 80, font.Settings(), "left", gradientConfig)
	fmt.Fprintln(w, "Platform credential storage from the command line")
	fmt.Fprintln(w)
	return writeVersion(w, version, commit, date)
}

func writeVersion(w io.Writer, version, commit, date string) error {
	fmt.Fprintf(w, "Version %s\n", version)
	if commit != "unknown" {
		fmt.Fprintf(w, "commit: %s\n", commit)
	}
	if date != "unknown" {
		fmt.Fprintf(w, "built: %s\n", date)
	}
	return nil
}
