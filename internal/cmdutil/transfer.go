package cmdutil

import (
	"fmt"
	"io"

	"github.com/lfc-dev/lfc/internal/transfer"
)

// PrintSummary writes one line per event, in the summary's deterministic
// hash order.
func PrintSummary(w io.Writer, s *transfer.Summary) {
	for _, ev := range s.Events {
		fmt.Fprintln(w, ev.String())
	}
}

// ExitForSummary maps a transfer run's outcome to lfc's exit-code scheme:
// 0 on full success, 4 if any failure was a digest mismatch, 3 for any
// other per-object failure.
func ExitForSummary(s *transfer.Summary) error {
	if s.Success() {
		return nil
	}
	if s.AnyCorrupt() {
		return WithExitCode(ExitCorrupt, fmt.Errorf("%s: corruption detected during transfer", s.Direction))
	}
	return WithExitCode(ExitTransferFailed, fmt.Errorf("%s: %d object(s) failed to transfer", s.Direction, s.FailedCount()))
}
