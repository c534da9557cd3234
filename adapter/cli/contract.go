package cli

import (
	"fmt"

	contractsCommands "github.com/felixgeelhaar/arrears/internal/contracts/application/commands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Manage debt contracts",
}

var contractCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a contract from its terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		ownerID, err := uuid.Parse(contractOwnerFlag)
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}
		total, err := decimal.NewFromString(contractTotalFlag)
		if err != nil {
			return fmt.Errorf("invalid total obligation: %w", err)
		}
		monthly, err := decimal.NewFromString(contractMonthlyFlag)
		if err != nil {
			return fmt.Errorf("invalid monthly payment: %w", err)
		}
		penalty, err := decimal.NewFromString(contractPenaltyFlag)
		if err != nil {
			return fmt.Errorf("invalid penalty percentage: %w", err)
		}
		rate, err := decimal.NewFromString(contractRateFlag)
		if err != nil {
			return fmt.Errorf("invalid interest rate: %w", err)
		}

		result, err := c.CreateContract.Handle(cmd.Context(), contractsCommands.CreateContractCommand{
			OwnerID:           ownerID,
			MonthlyPayment:    monthly,
			DurationMonths:    contractDurationFlag,
			TotalObligation:   total,
			PenaltyPercentage: penalty,
			InterestRate:      rate,
			CompoundFrequency: contractFrequencyFlag,
			CollateralType:    contractCollateralFlag,
		})
		if err != nil {
			return err
		}

		cmd.Printf("contract created: %s\n", result.ContractID)
		return nil
	},
}

var contractAcceptCmd = &cobra.Command{
	Use:   "accept <contract-id>",
	Short: "Accept a contract and set up recurring billing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		contractID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract id: %w", err)
		}

		err = c.AcceptContract.Handle(cmd.Context(), contractsCommands.AcceptContractCommand{
			ContractID:        contractID,
			GatewayCustomerID: contractCustomerFlag,
			PaymentMethodID:   contractMethodFlag,
		})
		if err != nil {
			return err
		}

		cmd.Println("contract accepted, first payment due in one month")
		return nil
	},
}

var (
	contractOwnerFlag      string
	contractTotalFlag      string
	contractMonthlyFlag    string
	contractDurationFlag   int
	contractPenaltyFlag    string
	contractRateFlag       string
	contractFrequencyFlag  string
	contractCollateralFlag string
	contractCustomerFlag   string
	contractMethodFlag     string
)

func init() {
	contractCreateCmd.Flags().StringVar(&contractOwnerFlag, "owner", "", "owner user id (required)")
	contractCreateCmd.Flags().StringVar(&contractTotalFlag, "total", "", "total obligation (required)")
	contractCreateCmd.Flags().StringVar(&contractMonthlyFlag, "monthly", "0", "monthly payment, 0 for percentage-of-income")
	contractCreateCmd.Flags().IntVar(&contractDurationFlag, "months", 0, "duration in months, 0 for unbounded")
	contractCreateCmd.Flags().StringVar(&contractPenaltyFlag, "penalty", "0", "late penalty percentage")
	contractCreateCmd.Flags().StringVar(&contractRateFlag, "rate", "0", "interest rate percentage")
	contractCreateCmd.Flags().StringVar(&contractFrequencyFlag, "compound", "none", "compound frequency: none|daily|weekly|monthly|quarterly")
	contractCreateCmd.Flags().StringVar(&contractCollateralFlag, "collateral", "none", "collateral type: none|vehicle|property|equipment|jewelry|other")
	_ = contractCreateCmd.MarkFlagRequired("owner")
	_ = contractCreateCmd.MarkFlagRequired("total")

	contractAcceptCmd.Flags().StringVar(&contractCustomerFlag, "customer", "", "gateway customer reference (required)")
	contractAcceptCmd.Flags().StringVar(&contractMethodFlag, "payment-method", "", "gateway payment method reference")
	_ = contractAcceptCmd.MarkFlagRequired("customer")

	contractCmd.AddCommand(contractCreateCmd)
	contractCmd.AddCommand(contractAcceptCmd)
	rootCmd.AddCommand(contractCmd)
}
