package testmodels

// SQLiteSchema creates the tables of every test model.
var SQLiteSchema = []string{
	`CREATE TABLE child_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(15) NOT NULL
	)`,
	`CREATE TABLE nested_child (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		child_one_id INTEGER UNIQUE REFERENCES child_class(id)
	)`,
	`CREATE TABLE model_with_sensitive_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		basic_text VARCHAR(32),
		top_secret VARCHAR(32)
	)`,
	`CREATE TABLE basic_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(15) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		binary_field BLOB,
		child_one_id INTEGER UNIQUE REFERENCES child_class(id),
		child_two_id INTEGER UNIQUE REFERENCES child_class(id),
		exclude_field VARCHAR(25),
		model_with_sensitive_data_id INTEGER UNIQUE REFERENCES model_with_sensitive_data(id)
	)`,
	`CREATE TABLE basic_class_child_three (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		basic_class_id INTEGER NOT NULL REFERENCES basic_class(id),
		child_class_id INTEGER NOT NULL REFERENCES child_class(id)
	)`,
	`CREATE TABLE linking_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		basic_class_id INTEGER NOT NULL REFERENCES basic_class(id),
		child_class_id INTEGER NOT NULL REFERENCES child_class(id)
	)`,
	`CREATE TABLE meta_data_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		choice VARCHAR(32) NOT NULL DEFAULT 'two'
	)`,
	`CREATE TABLE encrypted_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		encrypted_val TEXT
	)`,
	`CREATE TABLE json_text_field_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		json_text TEXT
	)`,
	`CREATE TABLE decimal_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		amount DECIMAL(10,2) NOT NULL
	)`,
	`CREATE TABLE one_to_one_class (
		alternative_id INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE request_field_save_class (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		method VARCHAR(32) NOT NULL
	)`,
	`CREATE TABLE model_with_parent_resource (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text_field VARCHAR(32),
		basic_class_id INTEGER NOT NULL REFERENCES basic_class(id)
	)`,
	`CREATE TABLE address (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		street TEXT NOT NULL
	)`,
	`CREATE TABLE customer (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address_id INTEGER REFERENCES address(id)
	)`,
	`CREATE TABLE shop_order (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note TEXT NOT NULL,
		customer_id INTEGER REFERENCES customer(id)
	)`,
}
