package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Summary renders a squash outcome (or dry-run preview) as a single
// human-facing line, the way the corpus's long-running jobs log chunk
// counts rather than raw integers.
func (r SquashResult) Summary() string {
	verb := "squashed"
	if r.DryRun {
		verb = "would squash"
	}
	return fmt.Sprintf("%s %s into 1 chunk, dropping %s",
		verb, humanize.Comma(int64(r.Chunks)), humanize.Comma(int64(r.Branches)))
}

// Summary renders a purge outcome as a single human-facing line.
func (r PurgeResult) Summary() string {
	return fmt.Sprintf("purged %s (%s chunks, %s branches)",
		humanize.Comma(int64(r.EpochsPurged)), humanize.Comma(int64(r.ChunksRemoved)), humanize.Comma(int64(r.BranchesRemoved)))
}

// Summary renders a deleted-document entry with a relative age, the
// way a listDeleted report reads more naturally as "deleted 3 days
// ago" than a raw timestamp.
func (d DeletedEntry) Summary() string {
	return fmt.Sprintf("%s (epoch %d) deleted %s", d.DocID, d.Epoch, humanize.Time(d.DeletedAt))
}
