package app

import (
	"context"
	"time"

	"github.com/corey/cognitia/internal/adapters/dictfile"
)

// importTimeout bounds one re-import of the watched dictionary file.
const importTimeout = 30 * time.Second

// onDictionaryChanged re-imports the watched dictionary file and schedules
// a rebuild. A file that fails to parse (mid-save, or a typo) is logged and
// ignored: the store and current snapshot stay as they were. Rows missing a
// title or URL, or repeating a URL, are logged and skipped.
func (a *App) onDictionaryChanged(path string) {
	dict, err := dictfile.Load(path)
	if err != nil {
		a.logger.Warn("dictionary file unreadable, keeping current topics", "path", path, "err", err)
		return
	}
	dict.LogSkipped(a.logger, path)

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()

	res, err := dictfile.Import(ctx, a.Store, dict.Topics)
	if err != nil {
		a.logger.Error("dictionary re-import failed", "path", path, "err", err)
	}
	a.logger.Info("dictionary file re-imported",
		"path", path,
		"upserted", res.Upserted,
		"skipped", res.Skipped+len(dict.Skipped),
	)
	if res.Upserted > 0 {
		a.Coordinator.Trigger()
	}
}
