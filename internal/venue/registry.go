package venue

import (
	"github.com/yanun0323/errors"

	"github.com/capitalk/strategy/internal/schema"
)

// Venue describes one configured ECN and its capability flags.
type Venue struct {
	ID                        schema.VenueID
	MIC                       string
	OrderAddr                 string
	MarketDataAddr            string
	UseSyntheticCancelReplace bool
}

// Registry stores venue configuration keyed by id and MIC name.
type Registry struct {
	venues []Venue
	byID   map[schema.VenueID]int
	byMIC  map[string]schema.VenueID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[schema.VenueID]int),
		byMIC: make(map[string]schema.VenueID),
	}
}

// Add registers a venue. Ids and MIC names must be unique.
func (r *Registry) Add(v Venue) error {
	if v.ID == 0 {
		return errors.New("venue id is zero")
	}
	if v.MIC == "" {
		return errors.Errorf("venue %d has empty MIC name", v.ID)
	}
	if _, ok := r.byID[v.ID]; ok {
		return errors.Errorf("venue id already exists: %d", v.ID)
	}
	if _, ok := r.byMIC[v.MIC]; ok {
		return errors.Errorf("venue MIC already exists: %s", v.MIC)
	}
	r.byID[v.ID] = len(r.venues)
	r.byMIC[v.MIC] = v.ID
	r.venues = append(r.venues, v)
	return nil
}

// Venue returns the venue by id.
func (r *Registry) Venue(id schema.VenueID) (Venue, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Venue{}, false
	}
	return r.venues[idx], true
}

// IDByMIC returns the venue id for a MIC name.
func (r *Registry) IDByMIC(mic string) (schema.VenueID, bool) {
	id, ok := r.byMIC[mic]
	return id, ok
}

// UseSyntheticCancelReplace reports whether the venue lacks native
// cancel/replace and needs the cancel-plus-new emulation.
func (r *Registry) UseSyntheticCancelReplace(id schema.VenueID) bool {
	v, ok := r.Venue(id)
	return ok && v.UseSyntheticCancelReplace
}

// All returns the registered venues in insertion order.
func (r *Registry) All() []Venue {
	out := make([]Venue, len(r.venues))
	copy(out, r.venues)
	return out
}
