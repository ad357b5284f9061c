package metadata_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/testmodels"
)

func newProvider(t *testing.T, dialect metadata.TagDialect) *metadata.Provider {
	t.Helper()
	p := metadata.NewProvider(dialect)
	require.NoError(t, testmodels.Register(p))
	return p
}

func TestDescribeBasicClass(t *testing.T) {
	p := newProvider(t, metadata.BunTags{})
	et, err := p.Describe(&testmodels.BasicClass{})
	require.NoError(t, err)

	assert.Equal(t, "basic_class", et.Name)
	assert.Equal(t, "id", et.PrimaryKey().Name)
	assert.True(t, et.PrimaryKey().AutoIncrement)

	childOne, ok := et.Field("child_one")
	require.True(t, ok)
	assert.Equal(t, metadata.RelOneToOne, childOne.Relation)
	assert.Equal(t, "child_one_id", childOne.Column)
	assert.True(t, childOne.IsForward())
	assert.True(t, childOne.Nullable)

	byColumn, ok := et.FieldByColumn("child_one_id")
	require.True(t, ok)
	assert.Same(t, childOne, byColumn)
	_, ok = et.Field("child_one_id")
	assert.False(t, ok, "the id column is absorbed by its relation")

	three, ok := et.Field("child_three")
	require.True(t, ok)
	assert.Equal(t, metadata.RelManyToMany, three.Relation)
	assert.True(t, three.Multiple)
	assert.Equal(t, "basic_class_child_three", three.JoinTable)
	assert.Equal(t, "basic_class_id", three.JoinOwnColumn)
	assert.Equal(t, "child_class_id", three.JoinRelatedColumn)

	linking, ok := et.Field("linking_classes")
	require.True(t, ok)
	assert.Equal(t, metadata.RelReverseOneToMany, linking.Relation)
	assert.True(t, linking.Reverse)
	assert.True(t, linking.AutoCreated)
	assert.Equal(t, "basic_class_id", linking.RemoteColumn)
	assert.Equal(t, "id", linking.RelatedColumn)

	binary, _ := et.Field("binary_field")
	assert.Equal(t, metadata.TypeBinary, binary.Type)
	created, _ := et.Field("created")
	assert.Equal(t, metadata.TypeDateTime, created.Type)
	assert.False(t, created.Nullable)
}

func TestConcreteColumns(t *testing.T) {
	p := newProvider(t, nil)
	et, err := p.Describe(testmodels.BasicClass{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"id", "name", "active", "created", "binary_field",
		"child_one_id", "child_two_id", "exclude_field",
		"model_with_sensitive_data_id", "child_three",
	}, et.ConcreteColumns())
}

func TestDescription(t *testing.T) {
	p := newProvider(t, nil)
	et, err := p.Describe(&testmodels.BasicClass{})
	require.NoError(t, err)
	desc := et.Describe()
	assert.Equal(t, []string{"child_one", "child_two", "model_with_sensitive_data"}, desc.ForeignKeyFields)
	assert.Equal(t, []string{"binary_field"}, desc.BinaryFields)
	assert.Empty(t, desc.DecimalFields)
	assert.NotContains(t, desc.AllFields, "child_three")
	assert.NotContains(t, desc.AllFields, "linking_classes")

	dec, err := p.Describe(&testmodels.DecimalClass{})
	require.NoError(t, err)
	assert.Equal(t, []string{"amount"}, dec.Describe().DecimalFields)
	amount, _ := dec.Field("amount")
	assert.Equal(t, 2, amount.Scale)
}

func TestDescribeMemoized(t *testing.T) {
	p := newProvider(t, nil)
	a, err := p.Describe(&testmodels.ChildClass{})
	require.NoError(t, err)
	b, err := p.Describe([]testmodels.ChildClass{})
	require.NoError(t, err)
	assert.Same(t, a, b)

	found, ok := p.Lookup("child_class")
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestRelatedAndReverseOneToOne(t *testing.T) {
	p := newProvider(t, nil)
	child, err := p.Describe(&testmodels.ChildClass{})
	require.NoError(t, err)
	nested, ok := child.Field("nested_child")
	require.True(t, ok)
	assert.Equal(t, metadata.RelOneToOne, nested.Relation)
	assert.True(t, nested.Reverse)
	assert.False(t, nested.Multiple)
	assert.Equal(t, "child_one_id", nested.RemoteColumn)

	rel, err := child.Related(nested)
	require.NoError(t, err)
	assert.Equal(t, "nested_child", rel.Name)
}

func TestConfigAccessors(t *testing.T) {
	p := newProvider(t, nil)
	model := &testmodels.BasicClass{}

	excludes, err := p.Excludes(model)
	require.NoError(t, err)
	assert.Equal(t, []string{"exclude_field"}, excludes)

	paths, err := p.IncludablePaths(model)
	require.NoError(t, err)
	assert.Contains(t, paths, "child_one__nested_child")

	filters, err := p.Filters(model)
	require.NoError(t, err)
	assert.True(t, filters["test_prop"].IsComputedProperty)

	props, err := p.FilterableProperties(model)
	require.NoError(t, err)
	assert.Contains(t, props, "test_prop")

	et, _ := p.Describe(model)
	assert.True(t, et.IsParseable("child_one"))
	assert.False(t, et.IsParseable("child_two"))
	assert.True(t, et.IsExcluded("exclude_field"))
	assert.Equal(t, 1, et.Config.MaxDepth)
}

func TestMetaChoices(t *testing.T) {
	p := newProvider(t, nil)
	et, err := p.Describe(&testmodels.MetaDataClass{})
	require.NoError(t, err)
	fields := et.Meta()["fields"].([]map[string]interface{})
	require.Len(t, fields, 2)
	assert.Equal(t, "choice", fields[1]["name"])
	assert.Equal(t, []interface{}{"one", "two", "three"}, fields[1]["choices"])

	basic, _ := p.Describe(&testmodels.BasicClass{})
	for _, f := range basic.Meta()["fields"].([]map[string]interface{}) {
		if f["name"] == "child_one" {
			assert.Equal(t, "one-to-one", f["type"])
			assert.Equal(t, "child_class", f["related_model"])
		}
	}
}

func TestNonAutoIncrementKey(t *testing.T) {
	for _, dialect := range []metadata.TagDialect{metadata.BunTags{}, metadata.GormTags{}} {
		t.Run(dialect.Name(), func(t *testing.T) {
			p := newProvider(t, dialect)
			et, err := p.Describe(&testmodels.OneToOneClass{})
			require.NoError(t, err)
			assert.Equal(t, "alternative_id", et.PrimaryKey().Name)
			assert.False(t, et.PrimaryKey().AutoIncrement)
		})
	}
}

func TestGormTagsAgreeWithBunTags(t *testing.T) {
	bunP := newProvider(t, metadata.BunTags{})
	gormP := newProvider(t, metadata.GormTags{})
	models := []interface{}{
		&testmodels.BasicClass{}, &testmodels.ChildClass{}, &testmodels.NestedChild{},
		&testmodels.LinkingClass{}, &testmodels.DecimalClass{}, &testmodels.Order{},
	}
	for _, m := range models {
		b, err := bunP.Describe(m)
		require.NoError(t, err)
		g, err := gormP.Describe(m)
		require.NoError(t, err)
		assert.Equal(t, b.Name, g.Name)
		assert.Equal(t, b.ConcreteColumns(), g.ConcreteColumns(), b.Name)
		for _, bf := range b.Fields {
			gf, ok := g.Field(bf.Name)
			if !assert.True(t, ok, "%s.%s", b.Name, bf.Name) {
				continue
			}
			assert.Equal(t, bf.Relation, gf.Relation, "%s.%s", b.Name, bf.Name)
			assert.Equal(t, bf.Column, gf.Column, "%s.%s", b.Name, bf.Name)
			assert.Equal(t, bf.RemoteColumn, gf.RemoteColumn, "%s.%s", b.Name, bf.Name)
			assert.Equal(t, bf.JoinOwnColumn, gf.JoinOwnColumn, "%s.%s", b.Name, bf.Name)
			assert.Equal(t, bf.JoinRelatedColumn, gf.JoinRelatedColumn, "%s.%s", b.Name, bf.Name)
		}
	}
}

type noKey struct {
	Name string `bun:"name"`
}

type twoKeys struct {
	A int64 `bun:"a,pk"`
	B int64 `bun:"b,pk"`
}

type danglingRelation struct {
	ID     int64                 `bun:"id,pk"`
	Parent *testmodels.ChildClass `bun:"rel:belongs-to,join:parent_id=id"`
}

func TestUnsupportedConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		model interface{}
	}{
		{"no primary key", &noKey{}},
		{"composite primary key", &twoKeys{}},
		{"relation without column", &danglingRelation{}},
		{"not a struct", 5},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metadata.NewProvider(metadata.BunTags{}).Describe(tt.model)
			require.Error(t, err)
			var cfgErr *common.UnsupportedConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %T", err)
		})
	}
}

func TestRegisterTwice(t *testing.T) {
	p := metadata.NewProvider(nil)
	_, err := p.Register(&testmodels.Address{}, metadata.EntityConfig{})
	require.NoError(t, err)
	_, err = p.Register(&testmodels.Address{}, metadata.EntityConfig{})
	require.Error(t, err)
}

func TestTableNameFallback(t *testing.T) {
	type plainThing struct {
		ID int64 `bun:"id,pk,autoincrement"`
	}
	et, err := metadata.NewProvider(nil).Describe(&plainThing{})
	require.NoError(t, err)
	assert.Equal(t, "plain_thing", et.Name)
}
