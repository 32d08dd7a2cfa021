package notification

import (
	"encoding/json"
	"reflect"
	"strings"
)

// ChangeSet reports which editable fields of a notification changed during
// an edit session, with their new values. The orchestrator turns it into a
// minimal partial update so fields this session never touched are not
// clobbered by a full overwrite.
type ChangeSet struct {
	TitleChanged bool
	Title        string
	BodyChanged  bool
	Body         string
	DataChanged  bool
	Data         map[string]any
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return !c.TitleChanged && !c.BodyChanged && !c.DataChanged
}

// Fields returns only the changed fields, keyed by their wire names.
func (c ChangeSet) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if c.TitleChanged {
		fields["title"] = c.Title
	}
	if c.BodyChanged {
		fields["body"] = c.Body
	}
	if c.DataChanged {
		fields["data"] = c.Data
	}
	return fields
}

// Diff compares an edit session's current content against the snapshot
// captured when the session opened. Title and body compare by exact equality
// after trimming; data compares structurally as parsed JSON, with an absent
// or whitespace-only value equivalent to an empty object. A malformed
// current data value is InvalidPayload.
func Diff(original Snapshot, current Edit) (ChangeSet, error) {
	var cs ChangeSet

	if title := strings.TrimSpace(current.Title); title != strings.TrimSpace(original.Title) {
		cs.TitleChanged = true
		cs.Title = title
	}

	if body := strings.TrimSpace(current.Body); body != strings.TrimSpace(original.Body) {
		cs.BodyChanged = true
		cs.Body = body
	}

	currentData, err := ParseData(current.Data)
	if err != nil {
		return ChangeSet{}, err
	}

	originalData := original.Data
	if originalData == nil {
		originalData = map[string]any{}
	}

	if !reflect.DeepEqual(canonicalJSON(originalData), canonicalJSON(currentData)) {
		cs.DataChanged = true
		cs.Data = currentData
	}

	return cs, nil
}

// canonicalJSON round-trips a value through encoding/json so that values
// from different sources (a decoded entity vs freshly parsed editor text)
// compare with the same number and map representations.
func canonicalJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
