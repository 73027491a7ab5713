package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes deliveries to the log. It is the default transport in
// development and the fallback when no external channel is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, targetID, category, message string) error {
	n.logger.Info().
		Str("target_id", targetID).
		Str("category", category).
		Str("message", message).
		Msg("notification")
	return nil
}
