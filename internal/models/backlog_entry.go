package models

import "encoding/json"

// VirtualBacklogItem is a read-only projection of a schedule activity that has
// not been converted into a backlog item yet. It is never stored.
type VirtualBacklogItem struct {
	LinkedWbsActivityID string `json:"linkedWbsActivityId"`
	Title               string `json:"title"`
	Code                string `json:"code,omitempty"`
	ActivityStatus      string `json:"activityStatus,omitempty"`
}

// BacklogEntry is either a persisted item or a virtual one. Exactly one of
// Item and Virtual is set.
type BacklogEntry struct {
	Item    *BacklogItem
	Virtual *VirtualBacklogItem
}

func PersistedEntry(item *BacklogItem) BacklogEntry {
	return BacklogEntry{Item: item}
}

func VirtualEntry(v *VirtualBacklogItem) BacklogEntry {
	return BacklogEntry{Virtual: v}
}

func (e BacklogEntry) IsVirtual() bool {
	return e.Virtual != nil
}

// MarshalJSON flattens the entry so clients see one list of items carrying
// an isVirtual flag.
func (e BacklogEntry) MarshalJSON() ([]byte, error) {
	if e.Virtual != nil {
		return json.Marshal(struct {
			*VirtualBacklogItem
			IsVirtual bool `json:"isVirtual"`
		}{e.Virtual, true})
	}
	return json.Marshal(struct {
		*BacklogItem
		IsVirtual bool `json:"isVirtual"`
	}{e.Item, false})
}
