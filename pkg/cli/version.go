package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/iotcraft/mqttsession/pkg/session"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show mqttctl version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		version := Version
		commit := Commit
		date := BuildDate

		if info, ok := debug.ReadBuildInfo(); ok {
			if version == "dev" {
				version = info.Main.Version
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commit == "none" {
						commit = setting.Value
					}
				case "vcs.time":
					if date == "unknown" {
						date = setting.Value
					}
				case "vcs.modified":
					if setting.Value == "true" {
						commit += "-dirty"
					}
				}
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mqttctl %s (%s, %s)\n", version, commit, date)
		fmt.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

		// Library versions come from the session itself, without touching
		// the network.
		s, err := session.New(session.Settings{})
		if err != nil {
			return err
		}
		defer s.Close()
		v := s.Version()
		fmt.Fprintf(out, "engine %d.%d.%d, library %d.%d.%d, MQTT %d.%d\n",
			v.Engine[0], v.Engine[1], v.Engine[2],
			v.Wrapper[0], v.Wrapper[1], v.Wrapper[2],
			v.Protocol[0], v.Protocol[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
