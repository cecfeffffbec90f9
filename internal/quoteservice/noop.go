package quoteservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/moventis/transfer-engine/internal/domain"
)

// AllowAllOracle is the default compliance oracle: every transfer is
// allowed with a zero risk score.
type AllowAllOracle struct{}

// Evaluate implements ComplianceOracle.
func (AllowAllOracle) Evaluate(_ context.Context, _ domain.ComplianceInput) (domain.ComplianceDecision, error) {
	return domain.ComplianceDecision{Allowed: true}, nil
}

// LogNotifier is the default notifier: it records the completed
// transfer in the service log and nothing else.
type LogNotifier struct{}

// TransferCompleted implements Notifier.
func (LogNotifier) TransferCompleted(ctx context.Context, transferID, userID int64) error {
	zerolog.Ctx(ctx).Info().
		Int64("transfer_id", transferID).
		Int64("user_id", userID).
		Msg("transfer completed")

	return nil
}
