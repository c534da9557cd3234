package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	contractsDomain "github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	"github.com/felixgeelhaar/arrears/internal/notify"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
)

// InitiationSweeper opens liquidation auctions for seriously delinquent
// contracts: seven or more days past due with collateral pledged. A
// contract without a matching unpledged asset is skipped and reconsidered
// on the next sweep.
type InitiationSweeper struct {
	contracts  contractsDomain.ContractRepository
	assets     domain.AssetRepository
	listings   domain.ListingRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewInitiationSweeper creates an initiation sweeper.
func NewInitiationSweeper(
	contracts contractsDomain.ContractRepository,
	assets domain.AssetRepository,
	listings domain.ListingRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	notifier notify.Notifier,
	logger *slog.Logger,
) *InitiationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &InitiationSweeper{
		contracts:  contracts,
		assets:     assets,
		listings:   listings,
		outboxRepo: outboxRepo,
		uow:        uow,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the sweeper's clock.
func (s *InitiationSweeper) WithClock(now func() time.Time) *InitiationSweeper {
	s.now = now
	return s
}

// Sweep scans overdue contracts and opens auctions for the eligible ones.
func (s *InitiationSweeper) Sweep(ctx context.Context) (*sweep.Report, error) {
	now := s.now().UTC()
	report := sweep.NewReport("liquidation", now)

	contracts, err := s.contracts.FindOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select overdue contracts: %w", err)
	}

	for _, contract := range contracts {
		outcome := s.process(ctx, contract, now)
		report.Add(outcome)
		if outcome.Status == sweep.OutcomeFailed {
			s.logger.Warn("liquidation initiation failed for contract",
				"contract_id", contract.ID(),
				"error", outcome.Error,
			)
		}
	}

	report.FinishedAt = s.now().UTC()
	s.logger.Info("liquidation sweep finished",
		"scanned", report.Scanned,
		"acted", report.Acted,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *InitiationSweeper) process(ctx context.Context, contract *contractsDomain.Contract, now time.Time) sweep.ItemOutcome {
	outcome := sweep.ItemOutcome{ID: contract.ID(), Status: sweep.OutcomeSkipped}

	if !contract.EligibleForLiquidation(now) {
		return outcome
	}

	candidates, err := s.assets.FindUnpledgedByOwnerAndCategory(ctx,
		contract.OwnerID(), string(contract.CollateralType()))
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if len(candidates) == 0 {
		outcome.Error = "no unpledged asset in collateral category"
		return outcome
	}
	asset := candidates[0]

	var listing *domain.Listing
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := asset.Pledge(); err != nil {
			return err
		}
		if err := s.assets.Save(txCtx, asset); err != nil {
			return err
		}

		listing, err = domain.NewListing(contract.ID(), asset.ID(), asset.EstimatedValue(), now)
		if err != nil {
			return err
		}
		if err := s.listings.Save(txCtx, listing); err != nil {
			return err
		}

		if err := contract.BeginLiquidation(); err != nil {
			return err
		}
		if err := s.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		events := append(listing.DomainEvents(), contract.DomainEvents()...)
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(contract.OwnerID()))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	listing.ClearDomainEvents()
	contract.ClearDomainEvents()

	if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
		Kind:     notify.KindLiquidationOpened,
		Title:    "Collateral liquidation started",
		Message:  fmt.Sprintf("Your %s %q has been listed for auction at %s to cover your overdue balance.", asset.Category(), asset.Name(), listing.StartingPrice().StringFixed(2)),
		Priority: notify.PriorityUrgent,
	}); err != nil {
		s.logger.Warn("liquidation notification failed", "contract_id", contract.ID(), "error", err)
	}

	outcome.Status = sweep.OutcomeActed
	outcome.Actions = append(outcome.Actions, "listing_opened")
	return outcome
}
