package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	subTargetURL string
	subSecret    string
	subEventType string
)

// subscriptionCmd represents the subscription command group
var subscriptionCmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Manage webhook subscriptions",
}

var subscriptionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		if subTargetURL == "" {
			return fmt.Errorf("--target-url is required")
		}
		resp, err := makeRequest("POST", "/subscriptions", map[string]string{
			"target_url": subTargetURL,
			"secret":     subSecret,
			"event_type": subEventType,
		})
		if err != nil {
			return fmt.Errorf("create subscription failed: %w", err)
		}
		return printResponse(resp)
	},
}

var subscriptionGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/subscriptions/"+args[0], nil)
		if err != nil {
			return fmt.Errorf("get subscription failed: %w", err)
		}
		return printResponse(resp)
	},
}

var subscriptionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a subscription (only the provided flags change)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("PUT", "/subscriptions/"+args[0], map[string]string{
			"target_url": subTargetURL,
			"secret":     subSecret,
			"event_type": subEventType,
		})
		if err != nil {
			return fmt.Errorf("update subscription failed: %w", err)
		}
		return printResponse(resp)
	},
}

var subscriptionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("DELETE", "/subscriptions/"+args[0], nil)
		if err != nil {
			return fmt.Errorf("delete subscription failed: %w", err)
		}
		return printResponse(resp)
	},
}

var subscriptionDeliveriesCmd = &cobra.Command{
	Use:   "deliveries <id>",
	Short: "Show recent delivery attempts for a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/subscriptions/"+args[0]+"/deliveries", nil)
		if err != nil {
			return fmt.Errorf("list deliveries failed: %w", err)
		}
		return printResponse(resp)
	},
}

func init() {
	rootCmd.AddCommand(subscriptionCmd)
	subscriptionCmd.AddCommand(subscriptionCreateCmd)
	subscriptionCmd.AddCommand(subscriptionGetCmd)
	subscriptionCmd.AddCommand(subscriptionUpdateCmd)
	subscriptionCmd.AddCommand(subscriptionDeleteCmd)
	subscriptionCmd.AddCommand(subscriptionDeliveriesCmd)

	for _, c := range []*cobra.Command{subscriptionCreateCmd, subscriptionUpdateCmd} {
		c.Flags().StringVar(&subTargetURL, "target-url", "", "endpoint URL to deliver events to")
		c.Flags().StringVar(&subSecret, "secret", "", "shared HMAC secret for inbound verification")
		c.Flags().StringVar(&subEventType, "event-type", "", "only accept events of this type (empty accepts all)")
	}
}
