package engine

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/testmodels"
)

type relationHolder struct {
	One  testmodels.ChildClass
	Many []testmodels.ChildClass
	Ptr  *testmodels.ChildClass
}

func TestAttachReturnsStoredChildren(t *testing.T) {
	holder := &relationHolder{}
	parent := reflect.ValueOf(holder)
	c1 := reflect.ValueOf(&testmodels.ChildClass{Name: "c1"})
	c2 := reflect.ValueOf(&testmodels.ChildClass{Name: "c2"})

	stored, err := attach(parent, &metadata.Field{Index: []int{0}}, []reflect.Value{c1})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	stored[0].Interface().(*testmodels.ChildClass).Name = "loaded"
	assert.Equal(t, "loaded", holder.One.Name, "value field is loaded in place")
	assert.Equal(t, "c1", c1.Interface().(*testmodels.ChildClass).Name)

	stored, err = attach(parent, &metadata.Field{Index: []int{1}}, []reflect.Value{c1, c2})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	stored[1].Interface().(*testmodels.ChildClass).Name = "second"
	assert.Equal(t, "second", holder.Many[1].Name)

	stored, err = attach(parent, &metadata.Field{Index: []int{2}}, []reflect.Value{c2})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Same(t, c2.Interface(), holder.Ptr)

	stored, err = attach(parent, &metadata.Field{Index: []int{2}}, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAttachedDeduplicatesPointers(t *testing.T) {
	c := reflect.ValueOf(&testmodels.ChildClass{})
	var a attached
	a.add([]reflect.Value{c})
	a.add([]reflect.Value{c, reflect.ValueOf(&testmodels.ChildClass{})})
	assert.Len(t, a.list, 2)
}
