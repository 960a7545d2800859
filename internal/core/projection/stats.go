package projection

import "github.com/ogurasousui/personnel-backoffice/internal/core/record"

// Status は集計用の状態区分です。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// Uncategorized は区分が空の記録の集計キーです。
const Uncategorized = "uncategorized"

// Stats は表示対象の記録から再計算される集計値です。
type Stats struct {
	Total      int
	Active     int
	Inactive   int
	ByCategory map[string]int
	ByStatus   map[Status]int
}

// Summarize は可視性条件を満たす記録の集計を返します。
func Summarize(records []*record.Record, showDeleted bool) Stats {
	stats := Stats{
		ByCategory: make(map[string]int),
		ByStatus:   make(map[Status]int),
	}

	for _, rec := range records {
		if rec == nil || rec.Deleted() != showDeleted {
			continue
		}
		stats.Total++

		category := rec.Category
		if category == "" {
			category = Uncategorized
		}
		stats.ByCategory[category]++

		switch {
		case rec.Deleted():
			stats.Inactive++
			stats.ByStatus[StatusDeleted]++
		case rec.Active:
			stats.Active++
			stats.ByStatus[StatusActive]++
		default:
			stats.Inactive++
			stats.ByStatus[StatusInactive]++
		}
	}

	return stats
}
