package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"voxkey/internal/ports"
)

// Desktop shows freedesktop notifications. Best effort; a failed
// notification is logged and dropped.
type Desktop struct {
	log zerolog.Logger
}

var _ ports.Notifier = (*Desktop)(nil)

func NewDesktop(log zerolog.Logger) *Desktop {
	return &Desktop{log: log.With().Str("component", "notify").Logger()}
}

func (d *Desktop) Notify(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		d.log.Debug().Err(err).Str("title", title).Msg("notification failed")
	}
}
