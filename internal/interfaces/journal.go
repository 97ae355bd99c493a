package interfaces

import "algo-dashboard/internal/types"

type Journal interface {
	Append(e types.JournalEntry) error
}
