package session

import (
	"fmt"

	"github.com/daviddao/mailsift/internal/display"
)

// Stats holds per-session counters.
type Stats struct {
	Processed          int
	Kept               int
	Deleted            int
	Skipped            int
	Agreements         int
	Disagreements      int
	AutoAccepted       int
	InstructionUpdates int
	Undos              int
}

// Summary renders the counters as one line.
func (s *Stats) Summary() string {
	return fmt.Sprintf("processed %d · kept %d · deleted %d · skipped %d",
		s.Processed, s.Kept, s.Deleted, s.Skipped)
}

// Print renders the full counter block.
func (s *Stats) Print() {
	display.Header("Session statistics")
	fmt.Printf("  Processed:     %d\n", s.Processed)
	fmt.Printf("  Kept:          %d\n", s.Kept)
	fmt.Printf("  Deleted:       %d\n", s.Deleted)
	fmt.Printf("  Skipped:       %d\n", s.Skipped)
	fmt.Printf("  Agreements:    %d\n", s.Agreements)
	fmt.Printf("  Disagreements: %d\n", s.Disagreements)
	if s.AutoAccepted > 0 {
		fmt.Printf("  Auto-accepted: %d\n", s.AutoAccepted)
	}
	if s.InstructionUpdates > 0 {
		fmt.Printf("  Instruction updates: %d\n", s.InstructionUpdates)
	}
	if s.Undos > 0 {
		fmt.Printf("  Undos:         %d\n", s.Undos)
	}
}
