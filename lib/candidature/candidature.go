// Package candidature holds the data model of tracked job applications and
// the pure functions over it: status resolution, ordering and change
// detection.
package candidature

import "fmt"

// Event is one entry of a candidature's timeline.
type Event struct {
	Label string  `json:"event"`
	Date  string  `json:"date"`
	Icon  IconKey `json:"icon"`
}

// Key identifies a candidature across runs, the list page exposes no
// stable id.
type Key struct {
	Title       string
	CompanyName string
}

func (k Key) String() string {
	return fmt.Sprintf("%s @ %s", k.Title, k.CompanyName)
}

type Candidature struct {
	Title                  string  `json:"title"`
	CompanyName            string  `json:"company_name"`
	LastSeen               string  `json:"last_seen"`
	Location               string  `json:"location"`
	RegisteredAndVacancies string  `json:"registered_and_vacancies"`
	Status                 Status  `json:"status"`
	DetailsURL             string  `json:"details_url"`
	OfferURL               string  `json:"offer_url"`
	Events                 []Event `json:"events"`
}

func (c Candidature) Key() Key {
	return Key{Title: c.Title, CompanyName: c.CompanyName}
}

// LatestEvent returns the most recent timeline entry, the site renders
// the timeline newest first.
func (c Candidature) LatestEvent() (Event, bool) {
	if len(c.Events) == 0 {
		return Event{}, false
	}
	return c.Events[0], true
}

// Find returns the first candidature in set with the given key.
func Find(set []Candidature, key Key) (Candidature, bool) {
	for _, c := range set {
		if c.Key() == key {
			return c, true
		}
	}
	return Candidature{}, false
}

// Rederive recomputes every status from its events, returning a new slice.
// Stored statuses are never trusted.
func Rederive(set []Candidature) ([]Candidature, error) {
	out := make([]Candidature, len(set))
	for i, c := range set {
		status, err := Resolve(c.Events)
		if err != nil {
			return nil, fmt.Errorf("candidature %s: %w", c.Key(), err)
		}
		c.Status = status
		out[i] = c
	}
	return out, nil
}
