package candidature

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// IconKey is the normalized token of an event marker, a base icon name
// optionally followed by a state modifier, ex. "check+focus".
//
// List pages only expose the base icon ("check") while timeline events
// expose both parts.
type IconKey string

const (
	IconApplied  IconKey = "check+focus"
	IconCVRead   IconKey = "view-details+focus"
	IconIncluded IconKey = "check+marked"
	IconRejected IconKey = "close+alert"

	// IconCheck is the base token the list page shows for applied candidatures.
	IconCheck IconKey = "check"
)

var iconSeparators = regexp.MustCompile(`[\s+]+`)

// the site spells a few icon names without separators
var iconAliases = map[string]string{
	"viewdetails": "view-details",
}

// ParseIconKey normalizes raw style classes into an IconKey.
//
//	"iconfont-Check focus"       -> "check+focus"
//	"iconfont-Viewdetails focus" -> "view-details+focus"
//	"check focus"                -> "check+focus"
//	"iconfont-Check"             -> "check"
func ParseIconKey(raw string) IconKey {
	parts := iconSeparators.Split(strings.TrimSpace(raw), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(p)
		p = strings.TrimPrefix(p, "iconfont-")
		if p == "" || p == "iconfont" {
			continue
		}
		if alias, ok := iconAliases[p]; ok {
			p = alias
		}
		out = append(out, p)
	}
	return IconKey(strings.Join(out, "+"))
}

// Base returns the icon name without its modifier.
func (k IconKey) Base() IconKey {
	base, _, _ := strings.Cut(string(k), "+")
	return IconKey(base)
}

// HasPrefix reports whether prefix is a token-wise prefix of k,
// "check" is a prefix of "check+focus" but "che" is not.
func (k IconKey) HasPrefix(prefix IconKey) bool {
	if prefix == "" {
		return false
	}
	if k == prefix {
		return true
	}
	return strings.HasPrefix(string(k), string(prefix)+"+")
}

// ClassName returns the class spelling the site uses for k,
// "check+focus" -> "iconfont-Check focus".
func (k IconKey) ClassName() string {
	if k == "" {
		return ""
	}
	parts := strings.Split(string(k), "+")
	base := parts[0]
	for spelled, alias := range iconAliases {
		if alias == base {
			base = spelled
		}
	}
	if base != "" {
		base = strings.ToUpper(base[:1]) + base[1:]
	}
	parts[0] = "iconfont-" + base
	return strings.Join(parts, " ")
}

// MarshalText writes the class spelling so results.json stays readable by
// older versions.
func (k IconKey) MarshalText() ([]byte, error) {
	return []byte(k.ClassName()), nil
}

// UnmarshalText normalizes stored tokens so snapshots written with raw
// class names ("iconfont-Check focus") load as canonical keys.
func (k *IconKey) UnmarshalText(text []byte) error {
	*k = ParseIconKey(string(text))
	return nil
}

// Kind is the closed set of event classifications.
type Kind int

const (
	KindApplied Kind = iota
	KindCVRead
	KindIncluded
	KindRejected
)

// Status is the dominant classification of a candidature's timeline.
type Status struct {
	Name   string `json:"name"`
	Rank   int    `json:"value"`
	Symbol string `json:"emoji"`
}

func (s Status) String() string {
	return s.Symbol + " " + s.Name
}

const (
	SymbolApplied  = "✅"
	SymbolCVRead   = "👀"
	SymbolIncluded = "✔️"
	SymbolRejected = "❌"
)

var kindStatus = [...]Status{
	KindApplied:  {Name: "Applied", Rank: 0, Symbol: SymbolApplied},
	KindCVRead:   {Name: "CV Read", Rank: 1, Symbol: SymbolCVRead},
	KindIncluded: {Name: "Included", Rank: 2, Symbol: SymbolIncluded},
	KindRejected: {Name: "Rejected", Rank: 3, Symbol: SymbolRejected},
}

var iconKinds = map[IconKey]Kind{
	IconApplied:  KindApplied,
	IconCVRead:   KindCVRead,
	IconIncluded: KindIncluded,
	IconRejected: KindRejected,
}

// Status returns the status a single event of this kind stands for.
func (k Kind) Status() Status {
	return kindStatus[k]
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindStatus) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindStatus[k].Name
}

var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrNoEvents         = errors.New("cannot resolve status of an empty timeline")
)

// UnknownEventKindError is returned when an icon token is not part of the
// classification table.
type UnknownEventKindError struct {
	Icon IconKey
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q", string(e.Icon))
}

func (e *UnknownEventKindError) Is(target error) bool {
	return target == ErrUnknownEventKind
}

// KindOf classifies an icon token.
func KindOf(icon IconKey) (Kind, error) {
	kind, ok := iconKinds[icon]
	if !ok {
		return 0, &UnknownEventKindError{Icon: icon}
	}
	return kind, nil
}

// Resolve reduces a timeline to the status with the highest rank.
func Resolve(events []Event) (Status, error) {
	if len(events) == 0 {
		return Status{}, ErrNoEvents
	}

	best := KindApplied
	for i, e := range events {
		kind, err := KindOf(e.Icon)
		if err != nil {
			return Status{}, err
		}
		if i == 0 || kind.Status().Rank > best.Status().Rank {
			best = kind
		}
	}
	return best.Status(), nil
}
