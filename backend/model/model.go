package model

// Identity is the sender of an inbound event as reported by the transport.
// Handle is the public display handle and may be empty.
type Identity struct {
	UserID int64
	Handle string
}

// HasHandle reports whether the transport supplied a display handle.
func (i Identity) HasHandle() bool {
	return i.Handle != ""
}

// City is a selectable locale from the reference tables.
type City struct {
	ID   int
	Name string
}

// Activity is a selectable activity category from the reference tables.
type Activity struct {
	ID   int
	Name string
}

// DefaultLevel is the level every member starts at.
const DefaultLevel = 1

// Member is a fully registered community participant.
type Member struct {
	UserID     int64
	Name       string
	CityID     int
	ActivityID int
	Meetings   bool // invitations to offline meetings
	Contacts   bool // visible to contact matching
	Mentor     bool // takes part in the mentorship program
	Handle     string
	Level      int
}

// Option is one labeled choice in a selectable list. Data is the opaque
// payload the transport returns when the option is pressed.
type Option struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}
