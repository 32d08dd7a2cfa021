package audience

import "time"

// User represents one registered device record in the directory. The same
// physical device may appear under multiple user records, so duplicate
// tokens across records are expected and handled at resolution time.
type User struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	Email     string     `json:"email,omitempty"`
	Token     string     `json:"token,omitempty"`
	Brand     string     `json:"brand,omitempty"`
	ModelName string     `json:"modelName,omitempty"`
	Platform  string     `json:"platform,omitempty"`
	OSVersion string     `json:"osVersion,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Identity returns the identifier the console uses when selecting this
// record: ID when present, UserID otherwise.
func (u User) Identity() string {
	if u.ID != "" {
		return u.ID
	}
	return u.UserID
}

// UserGroup is a named, pre-computed set of delivery tokens.
type UserGroup struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	MetaName string   `json:"metaName,omitempty"`
	Tokens   []string `json:"tokens,omitempty"`
}

// AllUsersGroupName is the display name of the synthetic directory-wide
// group. It is never offered as a selectable group; internally "everyone"
// is the explicit AllUsers selector, collapsed to an absent userGroup field
// only at the serialization boundary.
const AllUsersGroupName = "All Users"

// Segment is an externally computed customer grouping. Membership is
// fetched on demand from the upstream CRM and is inspection-only: segments
// are never a dispatch target.
type Segment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
