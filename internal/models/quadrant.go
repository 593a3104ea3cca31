package models

// Quadrant is an Eisenhower matrix bucket. It is derived from the urgency and
// importance flags and never stored.
type Quadrant string

const (
	QuadrantDo           Quadrant = "do"
	QuadrantSchedule     Quadrant = "schedule"
	QuadrantDelegate     Quadrant = "delegate"
	QuadrantEliminate    Quadrant = "eliminate"
	QuadrantUnclassified Quadrant = "unclassified"
)

func QuadrantOf(isUrgent, isImportant bool) Quadrant {
	switch {
	case isUrgent && isImportant:
		return QuadrantDo
	case isImportant:
		return QuadrantSchedule
	case isUrgent:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// Quadrant returns the item's bucket, or unclassified when the flags were
// never set explicitly.
func (b *BacklogItem) Quadrant() Quadrant {
	if !b.IsClassified {
		return QuadrantUnclassified
	}
	return QuadrantOf(b.IsUrgent, b.IsImportant)
}
