// Package upstream canonicalizes the heterogeneous payload shapes returned
// by the document store's HTTP handlers and the CRM. Handlers have shipped
// lists as bare arrays and under several wrapper field names across
// versions; callers here always get a well-formed entity slice and never an
// error — a malformed payload normalizes to an empty list with a logged
// warning.
package upstream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"pushdesk/internal/domain/audience"
	"pushdesk/internal/domain/notification"
)

// listAliases is the ordered set of wrapper field names a list payload may
// arrive under. Matchers run in order; extending coverage is a one-line
// addition here.
var listAliases = []string{
	"users",
	"notifications",
	"data",
	"groups",
	"segments",
	"segmentsWithIds",
}

// Items extracts the raw entity list from a payload of unknown shape.
// Accepted shapes, in priority order: a bare array; an object with an
// array-valued field named by listAliases. Anything else reports ok=false.
func Items(raw []byte) ([]json.RawMessage, bool) {
	var bare []json.RawMessage
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, true
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, false
	}

	for _, alias := range listAliases {
		field, present := wrapped[alias]
		if !present {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(field, &items); err != nil {
			continue
		}
		return items, true
	}

	return nil, false
}

// Notifications normalizes a raw payload into notification entities.
// Missing fields get deterministic defaults: status pending, createdBy
// system, empty data map, empty token set. A synthetic id is assigned when
// both the primary and alias id fields are absent; it is stable within one
// fetch only and never a persisted identity.
func Notifications(raw []byte) []notification.Notification {
	items, ok := Items(raw)
	if !ok {
		slog.Warn("unrecognized notifications payload shape, returning empty list")
		return []notification.Notification{}
	}

	out := make([]notification.Notification, 0, len(items))
	for i, item := range items {
		var n notification.Notification
		if err := json.Unmarshal(item, &n); err != nil {
			slog.Warn("skipping malformed notification entity", "index", i, "error", err)
			continue
		}

		if n.ID == "" {
			n.ID = aliasID(item, "notification", i)
		}
		if n.Status == "" {
			n.Status = notification.StatusPending
		}
		if n.CreatedBy == "" {
			n.CreatedBy = "system"
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		if n.TargetTokens == nil {
			n.TargetTokens = []string{}
		}

		out = append(out, n)
	}
	return out
}

// Users normalizes a raw payload into device directory entries.
func Users(raw []byte) []audience.User {
	items, ok := Items(raw)
	if !ok {
		slog.Warn("unrecognized users payload shape, returning empty list")
		return []audience.User{}
	}

	out := make([]audience.User, 0, len(items))
	for i, item := range items {
		var u audience.User
		if err := json.Unmarshal(item, &u); err != nil {
			slog.Warn("skipping malformed user entity", "index", i, "error", err)
			continue
		}

		if u.ID == "" && u.UserID == "" {
			u.ID = aliasID(item, "user", i)
		}

		out = append(out, u)
	}
	return out
}

// Groups normalizes a raw payload into user groups.
func Groups(raw []byte) []audience.UserGroup {
	items, ok := Items(raw)
	if !ok {
		slog.Warn("unrecognized groups payload shape, returning empty list")
		return []audience.UserGroup{}
	}

	out := make([]audience.UserGroup, 0, len(items))
	for i, item := range items {
		var g audience.UserGroup
		if err := json.Unmarshal(item, &g); err != nil {
			slog.Warn("skipping malformed group entity", "index", i, "error", err)
			continue
		}

		if g.ID == "" {
			g.ID = aliasID(item, "group", i)
		}
		if g.Tokens == nil {
			g.Tokens = []string{}
		}

		out = append(out, g)
	}
	return out
}

// Segments normalizes a raw payload into CRM segments.
func Segments(raw []byte) []audience.Segment {
	items, ok := Items(raw)
	if !ok {
		slog.Warn("unrecognized segments payload shape, returning empty list")
		return []audience.Segment{}
	}

	out := make([]audience.Segment, 0, len(items))
	for i, item := range items {
		var s audience.Segment
		if err := json.Unmarshal(item, &s); err != nil {
			slog.Warn("skipping malformed segment entity", "index", i, "error", err)
			continue
		}

		if s.ID == "" {
			s.ID = aliasID(item, "segment", i)
		}

		out = append(out, s)
	}
	return out
}

// aliasID looks for the legacy "_id" field and falls back to a synthetic
// "<kind>-<index>" id so list rendering and lookups stay stable within one
// fetch.
func aliasID(item json.RawMessage, kind string, index int) string {
	var alias struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(item, &alias); err == nil && alias.ID != "" {
		return alias.ID
	}
	return fmt.Sprintf("%s-%d", kind, index)
}
