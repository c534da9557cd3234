package cli

import (
	"fmt"

	liquidationCommands "github.com/felixgeelhaar/arrears/internal/liquidation/application/commands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage collateral assets",
}

var assetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an owner's asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		ownerID, err := uuid.Parse(assetOwnerFlag)
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}
		value, err := decimal.NewFromString(assetValueFlag)
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}

		result, err := c.RegisterAsset.Handle(cmd.Context(), liquidationCommands.RegisterAssetCommand{
			OwnerID:        ownerID,
			Category:       assetCategoryFlag,
			Name:           assetNameFlag,
			EstimatedValue: value,
		})
		if err != nil {
			return err
		}

		cmd.Printf("asset registered: %s\n", result.AssetID)
		return nil
	},
}

var (
	assetOwnerFlag    string
	assetCategoryFlag string
	assetNameFlag     string
	assetValueFlag    string
)

func init() {
	assetAddCmd.Flags().StringVar(&assetOwnerFlag, "owner", "", "owner user id (required)")
	assetAddCmd.Flags().StringVar(&assetCategoryFlag, "category", "other", "asset category: vehicle|property|equipment|jewelry|other")
	assetAddCmd.Flags().StringVar(&assetNameFlag, "name", "", "asset name (required)")
	assetAddCmd.Flags().StringVar(&assetValueFlag, "value", "", "estimated value (required)")
	_ = assetAddCmd.MarkFlagRequired("owner")
	_ = assetAddCmd.MarkFlagRequired("name")
	_ = assetAddCmd.MarkFlagRequired("value")

	assetCmd.AddCommand(assetAddCmd)
	rootCmd.AddCommand(assetCmd)
}
