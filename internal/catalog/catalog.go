package catalog

import (
	"barakahAPI/internal/observance"
	"barakahAPI/internal/store"

	"github.com/google/uuid"
)

// Group is the pending items of one category.
type Group struct {
	Category store.Category `json:"category"`
	Items    []store.Item   `json:"items"`
}

// View is what the client renders for one kind on one day.
type View struct {
	Kind    store.ItemKind   `json:"kind"`
	Date    string           `json:"date"`
	Day     observance.State `json:"observance"`
	Pending []Group          `json:"pending"`
	Done    []store.Item     `json:"done"`
	// Videos have no category; their pending list is flat.
	PendingFlat []store.Item `json:"pending_items,omitempty"`
}

// Available reports whether an item can be completed on the given observance day.
// Scheduled items only appear on their own day; outside the window nothing scheduled does.
func Available(item store.Item, day observance.State) bool {
	if !item.IsActive {
		return false
	}
	if item.ScheduledDay == nil {
		return true
	}
	return day.Active() && *item.ScheduledDay == day.Day
}

func Filter(items []store.Item, day observance.State) []store.Item {
	out := make([]store.Item, 0, len(items))
	for _, item := range items {
		if Available(item, day) {
			out = append(out, item)
		}
	}
	return out
}

// Split separates items completed today from the rest, preserving order.
func Split(items []store.Item, completed map[uuid.UUID]bool) (pending, done []store.Item) {
	pending = make([]store.Item, 0, len(items))
	done = make([]store.Item, 0)
	for _, item := range items {
		if completed[item.ID] {
			done = append(done, item)
		} else {
			pending = append(pending, item)
		}
	}
	return pending, done
}

// GroupByCategory buckets items in display order. Empty categories are kept so the
// client can render a "nothing left" state, and items with an unknown category are dropped.
func GroupByCategory(items []store.Item) []Group {
	groups := make([]Group, len(store.Categories))
	index := make(map[store.Category]int, len(store.Categories))
	for i, c := range store.Categories {
		groups[i] = Group{Category: c, Items: []store.Item{}}
		index[c] = i
	}
	for _, item := range items {
		if i, ok := index[item.Category]; ok {
			groups[i].Items = append(groups[i].Items, item)
		}
	}
	return groups
}

// Build assembles the view from the active catalog and the completed set.
func Build(kind store.ItemKind, date string, day observance.State, items []store.Item, completed map[uuid.UUID]bool) View {
	pending, done := Split(Filter(items, day), completed)
	v := View{Kind: kind, Date: date, Day: day, Done: done}
	if kind == store.KindQuest {
		v.Pending = GroupByCategory(pending)
	} else {
		v.Pending = []Group{}
		v.PendingFlat = pending
	}
	return v
}
