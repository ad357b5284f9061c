package testmodels

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/bitechdev/SimplifySpec/pkg/metadata"
)

// BasicClassConfig mirrors the policy the handler tests rely on.
func BasicClassConfig() metadata.EntityConfig {
	return metadata.EntityConfig{
		CacheTTL: 15 * time.Second,
		Filters: map[string]metadata.FilterSpec{
			"active":                        {ValueType: metadata.FilterBool},
			"test_prop":                     {ValueType: metadata.FilterBool, IsComputedProperty: true},
			"child_three__id__contains_all": {ValueType: metadata.FilterInt, IsList: true},
			"name__icontains":               {ValueType: metadata.FilterString},
			"name__revicontains":            {ValueType: metadata.FilterString},
			"child_one__name":               {ValueType: metadata.FilterString},
			"created__gte":                  {ValueType: metadata.FilterDateTime},
			"id__in":                        {ValueType: metadata.FilterInt, IsList: true},
		},
		FilterableProperties: map[string]metadata.FilterableProperty{
			"test_prop": {Expr: `"t"."name" IS NOT NULL`},
		},
		IncludablePaths: []string{
			"child_one__name",
			"child_three",
			"model_with_sensitive_data",
			"child_one",
			"child_one__nested_child",
			"linking_classes",
		},
		Excludes:           []string{"exclude_field"},
		ParseableRelations: []string{"child_one", "model_with_sensitive_data"},
	}
}

// Configs returns the entity policies of every test model.
func Configs() map[interface{}]metadata.EntityConfig {
	return map[interface{}]metadata.EntityConfig{
		(*BasicClass)(nil):             BasicClassConfig(),
		(*ChildClass)(nil):             {CacheTTL: 15 * time.Second},
		(*NestedChild)(nil):            {},
		(*BasicClassChildThree)(nil):   {},
		(*LinkingClass)(nil):           {},
		(*MetaDataClass)(nil):          {},
		(*EncryptedClass)(nil):         {},
		(*JSONTextFieldClass)(nil):     {},
		(*DecimalClass)(nil):           {},
		(*OneToOneClass)(nil):          {},
		(*ModelWithSensitiveData)(nil): {Excludes: []string{"top_secret"}},
		(*RequestFieldSaveClass)(nil): {
			RequestFieldsToSave: []metadata.RequestField{{ContextKey: "method", Field: "method"}},
		},
		(*ModelWithParentResource)(nil): {
			ResourceMapping: map[string]string{"basicClasses": "basic_class"},
		},
		(*Order)(nil):    {ParseableRelations: []string{"customer"}},
		(*Customer)(nil): {ParseableRelations: []string{"address"}},
		(*Address)(nil):  {},
	}
}

// Register registers every test model with p.
func Register(p *metadata.Provider) error {
	for model, cfg := range Configs() {
		if _, err := p.Register(model, cfg); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBun registers the join models bun needs for many-to-many
// relations.
func RegisterBun(db *bun.DB) {
	db.RegisterModel((*BasicClassChildThree)(nil))
}
