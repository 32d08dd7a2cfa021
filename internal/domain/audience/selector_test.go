package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPersisted(t *testing.T) {
	tests := []struct {
		name    string
		groupID string
		tokens  []string
		want    SelectorKind
	}{
		{"group wins", "g1", []string{"t1"}, SelectGroup},
		{"stored tokens", "", []string{"t1"}, SelectTokens},
		{"absent fields mean all users", "", nil, SelectAllUsers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := FromPersisted(tt.groupID, tt.tokens)
			assert.Equal(t, tt.want, sel.Kind)
		})
	}
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "all users", AllUsers().String())
	assert.Equal(t, `group "g1"`, ByGroup("g1").String())
	assert.Equal(t, "2 selected devices", ExplicitDevices([]string{"a", "b"}, nil).String())
	assert.Equal(t, "1 stored tokens", ExplicitTokens([]string{"t"}).String())
}
