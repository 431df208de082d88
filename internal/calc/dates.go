package calc

import (
	"time"

	"github.com/dgallion1/docpress/internal/doctree"
	"github.com/dgallion1/docpress/internal/format"
)

// ResolveDates writes the resolved date into every date placeholder and
// returns how many were updated. Unrecognized expressions resolve to now.
func ResolveDates(tree *doctree.Tree, now time.Time) int {
	for _, d := range tree.Dates {
		doctree.SetText(d.Node, format.Date(now.AddDate(0, 0, d.Offset)))
	}
	return len(tree.Dates)
}
