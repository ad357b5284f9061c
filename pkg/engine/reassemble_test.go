package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

func TestReassembleGroupsInFirstSeenOrder(t *testing.T) {
	rows := []FlatRow{
		{"id": int64(2), "name": "b"},
		{"id": int64(1), "name": "a"},
	}
	out, err := Reassemble(rows, Shape{PrimaryKey: "id"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0]["id"])
	assert.Equal(t, int64(1), out[1]["id"])
}

func TestReassembleFoldsIncludes(t *testing.T) {
	shape := Shape{PrimaryKey: "id", Includes: map[string]bool{"child_one": false, "linking_classes": true}}
	rows := []FlatRow{
		{"id": int64(1), "child_one.id": int64(7), "child_one.name": "c", "linking_classes.id": nil},
		{"id": int64(2), "child_one.id": nil, "child_one.name": nil, "linking_classes.id": nil},
	}
	out, err := Reassemble(rows, shape)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": int64(7), "name": "c"}, out[0]["child_one"])
	assert.Equal(t, []interface{}{}, out[0]["linking_classes"], "an all-null multi include is empty")
	assert.Nil(t, out[1]["child_one"])
}

func TestReassembleFanOut(t *testing.T) {
	shape := Shape{
		PrimaryKey: "id",
		Includes:   map[string]bool{"linking_classes": true},
		Multiple:   []string{"child_three"},
	}
	rows := []FlatRow{
		{"id": int64(1), "child_three": int64(10), "linking_classes.id": int64(100)},
		{"id": int64(1), "child_three": int64(11), "linking_classes.id": int64(100)},
		{"id": int64(1), "child_three": int64(10), "linking_classes.id": int64(101)},
		{"id": int64(1), "child_three": int64(11), "linking_classes.id": int64(101)},
	}
	out, err := Reassemble(rows, shape)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []interface{}{int64(10), int64(11)}, out[0]["child_three"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": int64(100)},
		map[string]interface{}{"id": int64(101)},
	}, out[0]["linking_classes"])
}

func TestReassembleWrapsSingleMultiValues(t *testing.T) {
	shape := Shape{PrimaryKey: "id", Multiple: []string{"child_three"}}
	out, err := Reassemble([]FlatRow{
		{"id": int64(1), "child_three": int64(10)},
		{"id": int64(2), "child_three": nil},
	}, shape)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(10)}, out[0]["child_three"])
	assert.Equal(t, []interface{}{}, out[1]["child_three"])
}

func TestReassembleScalarFanOutKeepsRawList(t *testing.T) {
	out, err := Reassemble([]FlatRow{
		{"id": int64(1), "tag": "x"},
		{"id": int64(1), "tag": "y"},
		{"id": int64(1), "tag": "x"},
	}, Shape{PrimaryKey: "id"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y", "x"}, out[0]["tag"])
}

func TestReassembleDuplicateRows(t *testing.T) {
	_, err := Reassemble([]FlatRow{
		{"id": int64(1), "name": "a"},
		{"id": int64(1), "name": "a"},
	}, Shape{PrimaryKey: "id"})
	var ce *common.InternalConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "duplicate object for key", ce.Message)
	assert.Equal(t, int64(1), ce.Key)
}

func TestReassembleRemovesExcludes(t *testing.T) {
	out, err := Reassemble([]FlatRow{{"id": int64(1), "secret": "s"}}, Shape{PrimaryKey: "id", Excludes: []string{"secret"}})
	require.NoError(t, err)
	assert.NotContains(t, out[0], "secret")
}
