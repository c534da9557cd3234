package commands

import (
	"context"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateContractCommand contains the data needed to create a contract.
type CreateContractCommand struct {
	OwnerID           uuid.UUID
	MonthlyPayment    decimal.Decimal
	DurationMonths    int
	TotalObligation   decimal.Decimal
	PenaltyPercentage decimal.Decimal
	InterestRate      decimal.Decimal
	CompoundFrequency string
	CollateralType    string
}

// CreateContractResult contains the result of creating a contract.
type CreateContractResult struct {
	ContractID uuid.UUID
}

// CreateContractHandler handles the CreateContractCommand.
type CreateContractHandler struct {
	contracts  domain.ContractRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewCreateContractHandler creates a new CreateContractHandler.
func NewCreateContractHandler(contracts domain.ContractRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *CreateContractHandler {
	return &CreateContractHandler{
		contracts:  contracts,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle executes the CreateContractCommand.
func (h *CreateContractHandler) Handle(ctx context.Context, cmd CreateContractCommand) (*CreateContractResult, error) {
	var result *CreateContractResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		freq := domain.CompoundFrequency(cmd.CompoundFrequency)
		if cmd.CompoundFrequency == "" {
			freq = domain.CompoundNone
		}
		collateral := domain.CollateralType(cmd.CollateralType)
		if cmd.CollateralType == "" {
			collateral = domain.CollateralNone
		}

		contract, err := domain.NewContract(cmd.OwnerID, domain.ContractTerms{
			MonthlyPayment:    cmd.MonthlyPayment,
			DurationMonths:    cmd.DurationMonths,
			TotalObligation:   cmd.TotalObligation,
			PenaltyPercentage: cmd.PenaltyPercentage,
			InterestRate:      cmd.InterestRate,
			CompoundFrequency: freq,
			CollateralType:    collateral,
		})
		if err != nil {
			return err
		}

		if err := h.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		events := contract.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.OwnerID))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		result = &CreateContractResult{ContractID: contract.ID()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
