package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	_, ok = ByName("protobuf")
	assert.False(t, ok)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Name    string `json:"name"`
		Indices []int  `json:"indices"`
	}

	in := payload{Name: "01", Indices: []int{2, 5, 9}}
	data, err := JSON{}.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, JSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMustMarshal(t *testing.T) {
	assert.NotPanics(t, func() {
		MustMarshal(nil, map[string]int{"a": 1})
	})
	assert.Panics(t, func() {
		MustMarshal(JSON{}, make(chan int))
	})
}
