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

// SettlementService closes ended liquidation auctions. A listing with a
// winning bid is marked sold, the asset leaves the owner's holdings, and
// the sale proceeds are credited to the delinquent contract. A listing
// that ended without a bid stays active for further bids; it never expires
// into a withdrawn state on its own.
type SettlementService struct {
	contracts  contractsDomain.ContractRepository
	assets     domain.AssetRepository
	listings   domain.ListingRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewSettlementService creates a settlement service.
func NewSettlementService(
	contracts contractsDomain.ContractRepository,
	assets domain.AssetRepository,
	listings domain.ListingRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	notifier notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{
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

// WithClock overrides the service's clock.
func (s *SettlementService) WithClock(now func() time.Time) *SettlementService {
	s.now = now
	return s
}

// Sweep settles every ended listing.
func (s *SettlementService) Sweep(ctx context.Context) (*sweep.Report, error) {
	now := s.now().UTC()
	report := sweep.NewReport("settlement", now)

	listings, err := s.listings.FindEnded(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select ended listings: %w", err)
	}

	for _, listing := range listings {
		outcome := s.settle(ctx, listing, now)
		report.Add(outcome)
		if outcome.Status == sweep.OutcomeFailed {
			s.logger.Warn("settlement failed for listing",
				"listing_id", listing.ID(),
				"error", outcome.Error,
			)
		}
	}

	report.FinishedAt = s.now().UTC()
	s.logger.Info("settlement sweep finished",
		"scanned", report.Scanned,
		"acted", report.Acted,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *SettlementService) settle(ctx context.Context, listing *domain.Listing, now time.Time) sweep.ItemOutcome {
	outcome := sweep.ItemOutcome{ID: listing.ID(), Status: sweep.OutcomeSkipped}

	if !listing.HasBid() {
		outcome.Error = "ended without bids"
		return outcome
	}

	contract, err := s.contracts.FindByID(ctx, listing.ContractID())
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if contract == nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = "contract not found"
		return outcome
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := listing.MarkSold(now); err != nil {
			return err
		}
		if err := s.listings.Save(txCtx, listing); err != nil {
			return err
		}

		// The sold asset leaves the owner's holdings for good.
		if err := s.assets.Delete(txCtx, listing.AssetID()); err != nil {
			return err
		}

		if contract.InLiquidation() {
			if err := contract.EndLiquidation(); err != nil {
				return err
			}
		}
		if err := contract.RecordPayment(listing.CurrentBid(), now); err != nil {
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

	message := fmt.Sprintf("Your collateral sold for %s. The proceeds were applied to your balance; remaining: %s.",
		listing.CurrentBid().StringFixed(2), contract.RemainingBalance().StringFixed(2))
	if contract.IsResolved() {
		message = fmt.Sprintf("Your collateral sold for %s, which fully covered your obligation. The contract is now settled.",
			listing.CurrentBid().StringFixed(2))
	}
	if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
		Kind:     notify.KindLiquidationClosed,
		Title:    "Collateral sold",
		Message:  message,
		Priority: notify.PriorityHigh,
	}); err != nil {
		s.logger.Warn("settlement notification failed", "contract_id", contract.ID(), "error", err)
	}

	outcome.Status = sweep.OutcomeActed
	outcome.Actions = append(outcome.Actions, "sold")
	if contract.IsResolved() {
		outcome.Actions = append(outcome.Actions, "contract_resolved")
	}
	return outcome
}
