package roster

import "github.com/JonMunkholm/swimresults/internal/normalize"

type eventKey struct {
	course   normalize.Course
	distance int
	stroke   normalize.Stroke
	gender   normalize.Gender
}

// EventIndex maps (course, distance, stroke, gender) to a canonical event.
type EventIndex struct {
	byKey map[eventKey]Event
}

// NewEventIndex indexes events. Later duplicates of the same key are ignored.
func NewEventIndex(events []Event) *EventIndex {
	idx := &EventIndex{byKey: make(map[eventKey]Event, len(events))}
	for _, e := range events {
		k := eventKey{e.Course, e.Distance, e.Stroke, e.Gender}
		if _, exists := idx.byKey[k]; !exists {
			idx.byKey[k] = e
		}
	}
	return idx
}

// Lookup finds the event for the given shape.
func (idx *EventIndex) Lookup(course normalize.Course, distance int, stroke normalize.Stroke, gender normalize.Gender) (Event, bool) {
	e, ok := idx.byKey[eventKey{course, distance, stroke, gender}]
	return e, ok
}

// Len returns the number of indexed events.
func (idx *EventIndex) Len() int { return len(idx.byKey) }
