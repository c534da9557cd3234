package cli

import (
	"fmt"

	liquidationCommands "github.com/felixgeelhaar/arrears/internal/liquidation/application/commands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var bidCmd = &cobra.Command{
	Use:   "bid <listing-id>",
	Short: "Place a bid on a liquidation listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		listingID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid listing id: %w", err)
		}
		bidderID, err := uuid.Parse(bidderFlag)
		if err != nil {
			return fmt.Errorf("invalid bidder id: %w", err)
		}
		amount, err := decimal.NewFromString(bidAmountFlag)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		err = c.PlaceBid.Handle(cmd.Context(), liquidationCommands.PlaceBidCommand{
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
		})
		if err != nil {
			return err
		}

		cmd.Println("bid placed")
		return nil
	},
}

var (
	bidderFlag    string
	bidAmountFlag string
)

func init() {
	bidCmd.Flags().StringVar(&bidderFlag, "bidder", "", "bidder user id (required)")
	bidCmd.Flags().StringVar(&bidAmountFlag, "amount", "", "bid amount (required)")
	_ = bidCmd.MarkFlagRequired("bidder")
	_ = bidCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(bidCmd)
}
