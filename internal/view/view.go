// Package view holds the navigation state machine: one tagged screen value,
// the transition rules between screens, and the per-slot sequence counters
// that discard superseded fetch batches.
package view

import "github.com/gravcine/gravcine/internal/tmdb"

// Screen is the single active screen. Exactly one is active at a time;
// every transition clears the selections belonging to the others.
type Screen int

const (
	ScreenHome Screen = iota
	ScreenSearchResults
	ScreenMediaDetail
	ScreenActorDetail
	ScreenAuth
	ScreenProfile
	ScreenDashboard
)

func (s Screen) String() string {
	switch s {
	case ScreenHome:
		return "home"
	case ScreenSearchResults:
		return "search_results"
	case ScreenMediaDetail:
		return "media_detail"
	case ScreenActorDetail:
		return "actor_detail"
	case ScreenAuth:
		return "auth"
	case ScreenProfile:
		return "profile"
	case ScreenDashboard:
		return "dashboard"
	}
	return "unknown"
}

func (s Screen) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

type SearchType string

const (
	SearchTypeMedia  SearchType = "media"
	SearchTypePerson SearchType = "person"
)

func (t SearchType) Valid() bool {
	return t == SearchTypeMedia || t == SearchTypePerson
}

// MediaRef identifies one medium for detail navigation.
type MediaRef struct {
	ID        int64          `json:"id"`
	MediaType tmdb.MediaType `json:"media_type"`
}

// Complete reports whether the reference can be fetched at all. An
// incomplete reference fails fast locally, with no network call.
func (r MediaRef) Complete() bool {
	return r.ID != 0 && r.MediaType.Valid()
}

// Slot names a view region whose data is populated by one fetch batch.
type Slot int

const (
	SlotHome Slot = iota
	SlotSearch
	SlotMedia
	SlotActor
	SlotProfile
	SlotDashboardMedia
	SlotDashboardActors

	slotCount
)

// Machine is the single writer of navigation state. It is not safe for
// concurrent use; the owning App serializes access.
type Machine struct {
	screen        Screen
	query         string
	searchType    SearchType
	hasResults    bool
	media         MediaRef
	actor         int64
	profileUserID string
	seq           [slotCount]uint64
}

func NewMachine() *Machine {
	return &Machine{searchType: SearchTypeMedia}
}

func (m *Machine) Screen() Screen           { return m.screen }
func (m *Machine) Query() string            { return m.query }
func (m *Machine) SearchType() SearchType   { return m.searchType }
func (m *Machine) HasResults() bool         { return m.hasResults }
func (m *Machine) MediaSelection() MediaRef { return m.media }
func (m *Machine) ActorSelection() int64    { return m.actor }
func (m *Machine) ProfileUserID() string    { return m.profileUserID }

// Begin issues a new sequence number for a fetch batch on the slot. Only
// the latest issued batch for a slot may commit.
func (m *Machine) Begin(slot Slot) uint64 {
	m.seq[slot]++
	return m.seq[slot]
}

// Latest reports whether seq is still the most recently issued batch for
// the slot.
func (m *Machine) Latest(slot Slot, seq uint64) bool {
	return m.seq[slot] == seq
}

func (m *Machine) SubmitSearch(query string, searchType SearchType) {
	if !searchType.Valid() {
		searchType = SearchTypeMedia
	}
	m.screen = ScreenSearchResults
	m.query = query
	m.searchType = searchType
	m.hasResults = false
	m.clearSelections()
	m.profileUserID = ""
}

// MarkSearchResults records whether the committed search produced results,
// which decides where later close events land.
func (m *Machine) MarkSearchResults(nonEmpty bool) {
	m.hasResults = nonEmpty
}

func (m *Machine) SelectMedia(ref MediaRef) {
	m.screen = ScreenMediaDetail
	m.media = ref
	m.actor = 0
	m.profileUserID = ""
}

func (m *Machine) SelectActor(id int64) {
	m.screen = ScreenActorDetail
	m.actor = id
	m.media = MediaRef{}
	m.profileUserID = ""
}

// CloseDetail leaves a media or actor detail screen.
func (m *Machine) CloseDetail() {
	m.clearSelections()
	m.closeToPrior()
}

func (m *Machine) ShowAuth() {
	m.screen = ScreenAuth
	m.clearSelections()
	m.profileUserID = ""
}

func (m *Machine) CloseAuth() {
	m.closeToPrior()
}

// AuthSucceeded leaves the auth screen. The interrupted action is not
// replayed; the user retries it authenticated.
func (m *Machine) AuthSucceeded() {
	m.closeToPrior()
}

// Logout resets everything, same as a logo click.
func (m *Machine) Logout() {
	m.LogoClick()
}

func (m *Machine) ViewProfile(userID string) {
	m.screen = ScreenProfile
	m.profileUserID = userID
	m.clearSelections()
}

func (m *Machine) CloseProfile() {
	m.profileUserID = ""
	m.closeToPrior()
}

func (m *Machine) ShowDashboard() {
	m.screen = ScreenDashboard
	m.clearSelections()
	m.profileUserID = ""
}

func (m *Machine) CloseDashboard() {
	m.closeToPrior()
}

// LogoClick is the unconditional reset to Home.
func (m *Machine) LogoClick() {
	m.screen = ScreenHome
	m.query = ""
	m.searchType = SearchTypeMedia
	m.hasResults = false
	m.clearSelections()
	m.profileUserID = ""
}

// closeToPrior returns to the search results when a non-empty prior
// query+results pair exists, else to home.
func (m *Machine) closeToPrior() {
	if m.query != "" && m.hasResults {
		m.screen = ScreenSearchResults
		return
	}
	m.screen = ScreenHome
	m.query = ""
	m.searchType = SearchTypeMedia
	m.hasResults = false
}

func (m *Machine) clearSelections() {
	m.media = MediaRef{}
	m.actor = 0
}
