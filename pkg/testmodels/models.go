// Package testmodels holds example entities exercising every field type and
// relation kind. They carry both bun and gorm tags.
package testmodels

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/bitechdev/SimplifySpec/pkg/fields"
)

type ChildClass struct {
	bun.BaseModel `bun:"table:child_class,alias:child_class"`

	ID          int64        `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Name        string       `bun:"name,notnull" gorm:"column:name;not null" validate:"required,max=15"`
	NestedChild *NestedChild `bun:"rel:has-one,join:id=child_one_id" gorm:"foreignKey:ChildOneID"`
}

func (ChildClass) TableName() string { return "child_class" }

type NestedChild struct {
	bun.BaseModel `bun:"table:nested_child,alias:nested_child"`

	ID         int64       `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	ChildOneID *int64      `bun:"child_one_id,unique" gorm:"column:child_one_id;unique"`
	ChildOne   *ChildClass `bun:"rel:belongs-to,join:child_one_id=id" gorm:"foreignKey:ChildOneID"`
}

func (NestedChild) TableName() string { return "nested_child" }

type ModelWithSensitiveData struct {
	bun.BaseModel `bun:"table:model_with_sensitive_data,alias:model_with_sensitive_data"`

	ID        int64   `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	BasicText *string `bun:"basic_text" gorm:"column:basic_text" validate:"omitempty,max=32"`
	TopSecret *string `bun:"top_secret" gorm:"column:top_secret" validate:"omitempty,max=32"`
}

func (ModelWithSensitiveData) TableName() string { return "model_with_sensitive_data" }

type BasicClass struct {
	bun.BaseModel `bun:"table:basic_class,alias:basic_class"`

	ID           int64       `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Name         string      `bun:"name,notnull" gorm:"column:name;not null" validate:"required,max=15"`
	Active       bool        `bun:"active,notnull" gorm:"column:active;not null"`
	Created      time.Time   `bun:"created,notnull" gorm:"column:created;not null"`
	BinaryField  []byte      `bun:"binary_field" gorm:"column:binary_field"`
	ChildOneID   *int64      `bun:"child_one_id,unique" gorm:"column:child_one_id;unique"`
	ChildOne     *ChildClass `bun:"rel:belongs-to,join:child_one_id=id" gorm:"foreignKey:ChildOneID"`
	ChildTwoID   *int64      `bun:"child_two_id,unique" gorm:"column:child_two_id;unique"`
	ChildTwo     *ChildClass `bun:"rel:belongs-to,join:child_two_id=id" gorm:"foreignKey:ChildTwoID"`
	ExcludeField *string     `bun:"exclude_field" gorm:"column:exclude_field" validate:"omitempty,max=25"`

	ChildThree []*ChildClass `bun:"m2m:basic_class_child_three,join:BasicClass=ChildClass" gorm:"many2many:basic_class_child_three"`

	ModelWithSensitiveDataID *int64                  `bun:"model_with_sensitive_data_id,unique" gorm:"column:model_with_sensitive_data_id;unique"`
	ModelWithSensitiveData   *ModelWithSensitiveData `bun:"rel:belongs-to,join:model_with_sensitive_data_id=id" gorm:"foreignKey:ModelWithSensitiveDataID"`

	LinkingClasses []*LinkingClass `bun:"rel:has-many,join:id=basic_class_id" gorm:"foreignKey:BasicClassID"`
}

func (BasicClass) TableName() string { return "basic_class" }

// BasicClassChildThree is the join table of BasicClass.ChildThree.
type BasicClassChildThree struct {
	bun.BaseModel `bun:"table:basic_class_child_three,alias:basic_class_child_three"`

	ID           int64       `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	BasicClassID int64       `bun:"basic_class_id,notnull" gorm:"column:basic_class_id"`
	BasicClass   *BasicClass `bun:"rel:belongs-to,join:basic_class_id=id" gorm:"foreignKey:BasicClassID"`
	ChildClassID int64       `bun:"child_class_id,notnull" gorm:"column:child_class_id"`
	ChildClass   *ChildClass `bun:"rel:belongs-to,join:child_class_id=id" gorm:"foreignKey:ChildClassID"`
}

func (BasicClassChildThree) TableName() string { return "basic_class_child_three" }

type LinkingClass struct {
	bun.BaseModel `bun:"table:linking_class,alias:linking_class"`

	ID           int64       `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	BasicClassID int64       `bun:"basic_class_id,notnull" gorm:"column:basic_class_id;not null"`
	BasicClass   *BasicClass `bun:"rel:belongs-to,join:basic_class_id=id" gorm:"foreignKey:BasicClassID"`
	ChildClassID int64       `bun:"child_class_id,notnull" gorm:"column:child_class_id;not null"`
	ChildClass   *ChildClass `bun:"rel:belongs-to,join:child_class_id=id" gorm:"foreignKey:ChildClassID"`
}

func (LinkingClass) TableName() string { return "linking_class" }

type MetaDataClass struct {
	bun.BaseModel `bun:"table:meta_data_class,alias:meta_data_class"`

	ID     int64  `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Choice string `bun:"choice,notnull" gorm:"column:choice;not null" validate:"required,oneof=one two three"`
}

func (MetaDataClass) TableName() string { return "meta_data_class" }

type EncryptedClass struct {
	bun.BaseModel `bun:"table:encrypted_class,alias:encrypted_class"`

	ID           int64                  `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	EncryptedVal fields.EncryptedString `bun:"encrypted_val" gorm:"column:encrypted_val" validate:"required"`
}

func (EncryptedClass) TableName() string { return "encrypted_class" }

type JSONTextFieldClass struct {
	bun.BaseModel `bun:"table:json_text_field_class,alias:json_text_field_class"`

	ID       int64           `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	JSONText fields.JSONText `bun:"json_text" gorm:"column:json_text"`
}

func (JSONTextFieldClass) TableName() string { return "json_text_field_class" }

type DecimalClass struct {
	bun.BaseModel `bun:"table:decimal_class,alias:decimal_class"`

	ID     int64           `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Amount decimal.Decimal `bun:"amount,type:decimal(10,2),notnull" gorm:"column:amount;type:decimal(10,2);not null"`
}

func (DecimalClass) TableName() string { return "decimal_class" }

type OneToOneClass struct {
	bun.BaseModel `bun:"table:one_to_one_class,alias:one_to_one_class"`

	AlternativeID int64 `bun:"alternative_id,pk" gorm:"column:alternative_id;primaryKey;autoIncrement:false"`
}

func (OneToOneClass) TableName() string { return "one_to_one_class" }

type RequestFieldSaveClass struct {
	bun.BaseModel `bun:"table:request_field_save_class,alias:request_field_save_class"`

	ID     int64  `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Method string `bun:"method,notnull" gorm:"column:method;not null" validate:"required,max=32"`
}

func (RequestFieldSaveClass) TableName() string { return "request_field_save_class" }

type ModelWithParentResource struct {
	bun.BaseModel `bun:"table:model_with_parent_resource,alias:model_with_parent_resource"`

	ID           int64       `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	TextField    *string     `bun:"text_field" gorm:"column:text_field" validate:"omitempty,max=32"`
	BasicClassID int64       `bun:"basic_class_id,notnull" gorm:"column:basic_class_id;not null"`
	BasicClass   *BasicClass `bun:"rel:belongs-to,join:basic_class_id=id" gorm:"foreignKey:BasicClassID"`
}

func (ModelWithParentResource) TableName() string { return "model_with_parent_resource" }

// Order, Customer and Address form a three level parseable chain.
type Order struct {
	bun.BaseModel `bun:"table:shop_order,alias:shop_order"`

	ID         int64     `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Note       string    `bun:"note,notnull" gorm:"column:note;not null" validate:"required"`
	CustomerID *int64    `bun:"customer_id" gorm:"column:customer_id"`
	Customer   *Customer `bun:"rel:belongs-to,join:customer_id=id" gorm:"foreignKey:CustomerID"`
}

func (Order) TableName() string { return "shop_order" }

type Customer struct {
	bun.BaseModel `bun:"table:customer,alias:customer"`

	ID        int64    `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Name      string   `bun:"name,notnull" gorm:"column:name;not null" validate:"required"`
	AddressID *int64   `bun:"address_id" gorm:"column:address_id"`
	Address   *Address `bun:"rel:belongs-to,join:address_id=id" gorm:"foreignKey:AddressID"`
}

func (Customer) TableName() string { return "customer" }

type Address struct {
	bun.BaseModel `bun:"table:address,alias:address"`

	ID     int64  `bun:"id,pk,autoincrement" gorm:"column:id;primaryKey;autoIncrement"`
	Street string `bun:"street,notnull" gorm:"column:street;not null" validate:"required"`
}

func (Address) TableName() string { return "address" }
