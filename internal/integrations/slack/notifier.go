package slack

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"commentreview/internal/domain"

	"github.com/slack-go/slack"
)

// Poster is the part of *slack.Client the notifier uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts a one-line summary of each finished run to a channel.
type Notifier struct {
	API       Poster
	ChannelID string
}

func NewNotifier(token, channelID string, options ...slack.Option) *Notifier {
	return &Notifier{API: slack.New(token, options...), ChannelID: channelID}
}

// NotifyRun posts the run summary. A nil notifier does nothing.
func (n *Notifier) NotifyRun(ctx context.Context, run domain.Run) error {
	if n == nil || n.API == nil || n.ChannelID == "" {
		return nil
	}
	_, _, err := n.API.PostMessageContext(ctx, n.ChannelID, slack.MsgOptionText(FormatRun(run), false))
	if err != nil {
		return fmt.Errorf("post run summary: %w", err)
	}
	return nil
}

// FormatRun renders a run as a single Slack line.
func FormatRun(run domain.Run) string {
	in, out := filepath.Base(run.Input), filepath.Base(run.Output)
	elapsed := ""
	if !run.FinishedAt.IsZero() && !run.StartedAt.IsZero() {
		elapsed = fmt.Sprintf(" in %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.Status == domain.RunStatusFailed {
		return fmt.Sprintf(":x: %s of `%s` failed%s: %s", run.Kind, in, elapsed, run.Error)
	}
	switch run.Kind {
	case domain.RunKindCluster:
		return fmt.Sprintf(":white_check_mark: Produced %d clusters from `%s` -> `%s`%s", run.Rows, in, out, elapsed)
	default:
		msg := fmt.Sprintf(":white_check_mark: Processed %d rows from `%s` -> `%s`%s", run.Rows, in, out, elapsed)
		if run.FailedRows > 0 {
			msg += fmt.Sprintf(" (%d rows fell back to defaults)", run.FailedRows)
		}
		return msg
	}
}
