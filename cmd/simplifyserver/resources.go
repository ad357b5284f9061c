package main

import (
	"github.com/bitechdev/SimplifySpec/pkg/simplifyspec"
	"github.com/bitechdev/SimplifySpec/pkg/testmodels"
)

// resources served by the demo server.
func resources() []simplifyspec.Resource {
	all := simplifyspec.AllOperations
	return []simplifyspec.Resource{
		{Name: "basicClasses", Model: &testmodels.BasicClass{}, SupportedMethods: all},
		{
			Name:             "childClasses",
			Model:            &testmodels.ChildClass{},
			SupportedMethods: all,
			LinkedObjects: []simplifyspec.LinkedObject{
				{
					ParentResource:  "basicClasses",
					ParentModel:     &testmodels.BasicClass{},
					ParentName:      "basic_class",
					LinkingModel:    &testmodels.LinkingClass{},
					SubResourceName: "child_class",
				},
				{
					ParentResource:  "basicClasses",
					ParentModel:     &testmodels.BasicClass{},
					SubResourceName: "child_one",
					LivesOnParent:   true,
				},
			},
		},
		{
			Name:             "modelWithParentResources",
			Model:            &testmodels.ModelWithParentResource{},
			SupportedMethods: all,
			LinkedObjects: []simplifyspec.LinkedObject{
				{ParentResource: "basicClasses", ParentModel: &testmodels.BasicClass{}, ParentName: "basic_class"},
			},
		},
		{Name: "modelWithSensitiveData", Model: &testmodels.ModelWithSensitiveData{}, SupportedMethods: all},
		{Name: "metaDataClasses", Model: &testmodels.MetaDataClass{}, SupportedMethods: []simplifyspec.Operation{simplifyspec.OpGet, simplifyspec.OpGetList}},
		{Name: "encryptedClasses", Model: &testmodels.EncryptedClass{}, SupportedMethods: all},
		{Name: "decimalClasses", Model: &testmodels.DecimalClass{}, SupportedMethods: all},
		{Name: "requestFieldSaveClasses", Model: &testmodels.RequestFieldSaveClass{}, SupportedMethods: all},
		{Name: "orders", Model: &testmodels.Order{}, SupportedMethods: all},
	}
}
