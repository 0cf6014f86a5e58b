package candidature

import "fmt"

type ChangeKind int

const (
	ChangeNew ChangeKind = iota
	ChangeStatus
	ChangeGone
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeStatus:
		return "status"
	case ChangeGone:
		return "gone"
	}
	return "unknown"
}

// Change describes how one candidature differs between two result sets.
// From is the zero Status for new candidatures, To for gone ones.
type Change struct {
	Kind ChangeKind
	Key  Key
	From Status
	To   Status
}

// Diff lists the changes from past to current. New and changed entries
// follow current's order, gone entries follow past's order and come last.
func Diff(past, current []Candidature) []Change {
	var changes []Change
	seen := make(map[Key]bool, len(current))
	for _, c := range current {
		seen[c.Key()] = true
		old, ok := Find(past, c.Key())
		if !ok {
			changes = append(changes, Change{Kind: ChangeNew, Key: c.Key(), To: c.Status})
			continue
		}
		if old.Status != c.Status {
			changes = append(changes, Change{
				Kind: ChangeStatus,
				Key:  c.Key(),
				From: old.Status,
				To:   c.Status,
			})
		}
	}
	for _, c := range past {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		changes = append(changes, Change{Kind: ChangeGone, Key: c.Key(), From: c.Status})
	}
	return changes
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeNew:
		return fmt.Sprintf("new: %s (%s)", c.Key, c.To)
	case ChangeStatus:
		return fmt.Sprintf("status: %s %s -> %s", c.Key, c.From, c.To)
	case ChangeGone:
		return fmt.Sprintf("gone: %s (was %s)", c.Key, c.From)
	}
	return fmt.Sprintf("%s: %s", c.Kind, c.Key)
}
