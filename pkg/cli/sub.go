package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iotcraft/mqttsession/pkg/session"
)

var subCmd = &cobra.Command{
	Use:   "sub TOPIC [TOPIC...]",
	Short: "Subscribe to topics and print messages until interrupted",
	Example: `  mqttctl sub sensors/kitchen/temp
  mqttctl sub --qos 1 'sensors/#' 'alerts/#'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dropped := make(chan session.ReasonCode, 1)
		printMessage := func(msg session.Message) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.Topic, msg.Payload)
		}

		// Dispatch is exact-match, so wildcard subscriptions deliver
		// through the default handler. Route everything there.
		s, err := connectSession(ctx, cfg, session.Hooks{
			OnMessage:    printMessage,
			OnDisconnect: func(code session.ReasonCode) { dropped <- code },
		})
		if err != nil {
			return err
		}
		defer s.Close()

		for _, name := range args {
			topic := session.Topic{Name: name}
			if err := s.Subscribe(&topic, session.QoS(cfg.QoS), nil); err != nil {
				return fmt.Errorf("subscribe %s: %w", name, err)
			}
		}

		select {
		case <-ctx.Done():
			return s.Disconnect()
		case code := <-dropped:
			return fmt.Errorf("connection lost: %s", code)
		}
	},
}

func init() {
	rootCmd.AddCommand(subCmd)
}
