package commands

import (
	"context"

	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterAssetCommand records an owner's asset so it can later back a
// contract as collateral.
type RegisterAssetCommand struct {
	OwnerID        uuid.UUID
	Category       string
	Name           string
	EstimatedValue decimal.Decimal
}

// RegisterAssetResult contains the result of registering an asset.
type RegisterAssetResult struct {
	AssetID uuid.UUID
}

// RegisterAssetHandler handles the RegisterAssetCommand.
type RegisterAssetHandler struct {
	assets domain.AssetRepository
	uow    sharedApplication.UnitOfWork
}

// NewRegisterAssetHandler creates a new RegisterAssetHandler.
func NewRegisterAssetHandler(assets domain.AssetRepository, uow sharedApplication.UnitOfWork) *RegisterAssetHandler {
	return &RegisterAssetHandler{assets: assets, uow: uow}
}

// Handle executes the RegisterAssetCommand.
func (h *RegisterAssetHandler) Handle(ctx context.Context, cmd RegisterAssetCommand) (*RegisterAssetResult, error) {
	var result *RegisterAssetResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		asset, err := domain.NewAsset(cmd.OwnerID, cmd.Category, cmd.Name, cmd.EstimatedValue)
		if err != nil {
			return err
		}
		if err := h.assets.Save(txCtx, asset); err != nil {
			return err
		}
		result = &RegisterAssetResult{AssetID: asset.ID()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
