package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iotcraft/mqttsession/pkg/session"
)

var flagRetain bool

var pubCmd = &cobra.Command{
	Use:   "pub TOPIC PAYLOAD",
	Short: "Publish a message to a topic",
	Example: `  mqttctl pub sensors/kitchen/temp 21.5
  mqttctl pub --qos 1 --retain status/door open`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		published := make(chan uint16, 1)
		s, err := connectSession(cmd.Context(), cfg, session.Hooks{
			OnPublished: func(mid uint16) { published <- mid },
		})
		if err != nil {
			return err
		}
		defer s.Close()

		topic := session.Topic{Name: args[0], Retain: flagRetain}
		if err := s.PublishString(&topic, args[1], session.QoS(cfg.QoS)); err != nil {
			return err
		}

		// QoS 0 has no acknowledgment to wait for.
		if cfg.QoS > 0 {
			select {
			case <-published:
			case <-time.After(connectWait):
				return errors.New("timed out waiting for publish acknowledgment")
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}

		if cfg.Verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "published to %s (mid %d)\n", topic.Name, topic.ID)
		}
		return s.Disconnect()
	},
}

func init() {
	pubCmd.Flags().BoolVarP(&flagRetain, "retain", "r", false, "Mark the message as retained")
	rootCmd.AddCommand(pubCmd)
}
