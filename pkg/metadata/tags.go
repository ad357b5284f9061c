package metadata

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

// Relation kinds as written in struct tags.
const (
	tagBelongsTo  = "belongs-to"
	tagHasOne     = "has-one"
	tagHasMany    = "has-many"
	tagManyToMany = "many-to-many"
)

// ColumnInfo is what a tag dialect knows about a stored column.
type ColumnInfo struct {
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	NotNull       bool
	ReadOnly      bool
	SQLType       string
	Scale         int
}

// RelationInfo is what a tag dialect knows about a relation field.
//
// For belongs-to, OwnColumn is the key column on the owner and
// RelatedColumn the referenced column. For has-one and has-many, OwnColumn
// is the referenced column on the owner and RelatedColumn the key column on
// the related table.
type RelationInfo struct {
	Kind              string
	OwnColumn         string
	RelatedColumn     string
	JoinTable         string
	JoinOwnColumn     string
	JoinRelatedColumn string
}

// TagDialect reads entity schema from struct tags of one ORM.
type TagDialect interface {
	Name() string
	Table(typ reflect.Type) (table, alias string, ok bool)
	Column(owner reflect.Type, sf reflect.StructField) (ColumnInfo, bool)
	Relation(owner reflect.Type, sf reflect.StructField) (RelationInfo, bool)
}

// BunTags reads `bun:"..."` tags.
type BunTags struct{}

func (BunTags) Name() string { return "bun" }

func (BunTags) Table(typ reflect.Type) (string, string, bool) {
	table, alias := reflection.FindTableTag(typ)
	if table == "" {
		return "", "", false
	}
	if alias == "" {
		alias = reflection.BareTableName(table)
	}
	return table, alias, true
}

func (BunTags) Column(_ reflect.Type, sf reflect.StructField) (ColumnInfo, bool) {
	raw, hasTag := sf.Tag.Lookup("bun")
	if raw == "-" {
		return ColumnInfo{}, false
	}
	tag := reflection.ParseBunTag(raw)
	if _, ok := tag.Options["rel"]; ok {
		return ColumnInfo{}, false
	}
	if _, ok := tag.Options["m2m"]; ok {
		return ColumnInfo{}, false
	}
	if _, ok := tag.Options["table"]; ok {
		return ColumnInfo{}, false
	}
	if !hasTag && isRelationType(sf.Type) {
		return ColumnInfo{}, false
	}
	info := ColumnInfo{
		Column:        tag.Name,
		PrimaryKey:    tag.Has("pk"),
		AutoIncrement: tag.Has("autoincrement"),
		Unique:        tag.Has("unique"),
		NotNull:       tag.Has("notnull"),
		ReadOnly:      tag.Has("scanonly"),
		SQLType:       tag.Options["type"],
		Scale:         scaleFromSQLType(tag.Options["type"]),
	}
	if info.Column == "" {
		info.Column = naming.ToStorageName(sf.Name)
	}
	return info, true
}

func (BunTags) Relation(owner reflect.Type, sf reflect.StructField) (RelationInfo, bool) {
	tag := reflection.ParseBunTag(sf.Tag.Get("bun"))
	related := elemStruct(sf.Type)
	if table, ok := tag.Options["m2m"]; ok {
		own, rel := splitJoin(tag.Options["join"])
		if own == "" {
			own = owner.Name()
		}
		if rel == "" && related != nil {
			rel = related.Name()
		}
		return RelationInfo{
			Kind:              tagManyToMany,
			JoinTable:         table,
			JoinOwnColumn:     naming.ToStorageName(own) + "_id",
			JoinRelatedColumn: naming.ToStorageName(rel) + "_id",
		}, true
	}
	kind, ok := tag.Options["rel"]
	if !ok {
		return RelationInfo{}, false
	}
	own, rel := splitJoin(tag.Options["join"])
	switch kind {
	case tagBelongsTo:
		if own == "" {
			own = naming.ToStorageName(sf.Name) + "_id"
		}
		if rel == "" {
			rel = "id"
		}
	case tagHasOne, tagHasMany:
		if own == "" {
			own = "id"
		}
		if rel == "" {
			rel = naming.ToStorageName(owner.Name()) + "_id"
		}
	default:
		return RelationInfo{}, false
	}
	return RelationInfo{Kind: kind, OwnColumn: own, RelatedColumn: rel}, true
}

// GormTags reads `gorm:"..."` tags and GORM naming conventions.
type GormTags struct{}

func (GormTags) Name() string { return "gorm" }

func (GormTags) Table(typ reflect.Type) (string, string, bool) {
	typ = reflection.IndirectType(typ)
	v := reflect.New(typ)
	type tabler interface{ TableName() string }
	if t, ok := v.Interface().(tabler); ok {
		name := t.TableName()
		return name, reflection.BareTableName(name), name != ""
	}
	return "", "", false
}

func (g GormTags) Column(owner reflect.Type, sf reflect.StructField) (ColumnInfo, bool) {
	raw := sf.Tag.Get("gorm")
	if raw == "-" || strings.HasPrefix(raw, "-:") {
		return ColumnInfo{}, false
	}
	tag := reflection.ParseGormTag(raw)
	if tag.Has("many2many") || tag.Has("foreignKey") || isRelationType(sf.Type) {
		return ColumnInfo{}, false
	}
	info := ColumnInfo{
		Column:        reflection.ExtractColumnFromGormTag(raw),
		PrimaryKey:    tag.Has("primaryKey") || tag.Has("primary_key"),
		Unique:        tag.Has("unique") || tag.Has("uniqueIndex"),
		NotNull:       tag.Has("not null"),
		ReadOnly:      reflection.IsGormFieldReadOnly(raw),
		Scale:         -1,
	}
	if t, ok := tag.Get("type"); ok {
		info.SQLType = t
		info.Scale = scaleFromSQLType(t)
	}
	if s, ok := tag.Get("scale"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			info.Scale = n
		}
	}
	if info.Column == "" {
		info.Column = naming.ToStorageName(sf.Name)
	}
	if !info.PrimaryKey && sf.Name == "ID" && !g.hasExplicitPK(owner) {
		info.PrimaryKey = true
	}
	if v, ok := tag.Get("autoIncrement"); ok {
		info.AutoIncrement = v != "false"
	} else if info.PrimaryKey && isIntegerKind(sf.Type.Kind()) {
		info.AutoIncrement = true
	}
	return info, true
}

func (GormTags) hasExplicitPK(owner reflect.Type) bool {
	for _, sf := range reflection.StructFields(owner) {
		tag := reflection.ParseGormTag(sf.Tag.Get("gorm"))
		if tag.Has("primaryKey") || tag.Has("primary_key") {
			return true
		}
	}
	return false
}

func (g GormTags) Relation(owner reflect.Type, sf reflect.StructField) (RelationInfo, bool) {
	raw := sf.Tag.Get("gorm")
	if raw == "-" || !isRelationType(sf.Type) {
		return RelationInfo{}, false
	}
	tag := reflection.ParseGormTag(raw)
	related := elemStruct(sf.Type)
	owner = reflection.IndirectType(owner)

	if table, ok := tag.Get("many2many"); ok {
		own := naming.ToStorageName(owner.Name()) + "_id"
		rel := naming.ToStorageName(related.Name()) + "_id"
		if v, ok := tag.Get("joinForeignKey"); ok {
			own = naming.ToStorageName(v)
		}
		if v, ok := tag.Get("joinReferences"); ok {
			rel = naming.ToStorageName(v)
		}
		return RelationInfo{Kind: tagManyToMany, JoinTable: table, JoinOwnColumn: own, JoinRelatedColumn: rel}, true
	}

	fk, hasFK := tag.Get("foreignKey")
	ref, hasRef := tag.Get("references")

	if sf.Type.Kind() == reflect.Slice {
		if !hasFK {
			fk = owner.Name() + "ID"
		}
		if !hasRef {
			ref = "ID"
		}
		return RelationInfo{
			Kind:          tagHasMany,
			OwnColumn:     g.columnOf(owner, ref),
			RelatedColumn: g.columnOf(related, fk),
		}, true
	}

	if !hasFK {
		fk = sf.Name + "ID"
		if _, ok := fieldByName(owner, fk); !ok {
			fk = owner.Name() + "ID"
		}
	}
	if _, ok := fieldByName(owner, fk); ok {
		if !hasRef {
			ref = "ID"
		}
		return RelationInfo{
			Kind:          tagBelongsTo,
			OwnColumn:     g.columnOf(owner, fk),
			RelatedColumn: g.columnOf(related, ref),
		}, true
	}
	if !hasRef {
		ref = "ID"
	}
	return RelationInfo{
		Kind:          tagHasOne,
		OwnColumn:     g.columnOf(owner, ref),
		RelatedColumn: g.columnOf(related, fk),
	}, true
}

func (g GormTags) columnOf(typ reflect.Type, goName string) string {
	if sf, ok := fieldByName(typ, goName); ok {
		if info, ok := g.Column(typ, sf); ok {
			return info.Column
		}
	}
	return naming.ToStorageName(goName)
}

// AutoTags prefers bun tags and falls back to gorm tags per field.
type AutoTags struct{}

func (AutoTags) Name() string { return "auto" }

func (AutoTags) Table(typ reflect.Type) (string, string, bool) {
	if table, alias, ok := (BunTags{}).Table(typ); ok {
		return table, alias, true
	}
	return GormTags{}.Table(typ)
}

func (AutoTags) Column(owner reflect.Type, sf reflect.StructField) (ColumnInfo, bool) {
	if _, ok := sf.Tag.Lookup("bun"); ok {
		return BunTags{}.Column(owner, sf)
	}
	return GormTags{}.Column(owner, sf)
}

func (AutoTags) Relation(owner reflect.Type, sf reflect.StructField) (RelationInfo, bool) {
	if _, ok := sf.Tag.Lookup("bun"); ok {
		return BunTags{}.Relation(owner, sf)
	}
	return GormTags{}.Relation(owner, sf)
}

func splitJoin(join string) (string, string) {
	if join == "" {
		return "", ""
	}
	own, rel, _ := strings.Cut(join, "=")
	return strings.TrimSpace(own), strings.TrimSpace(rel)
}

// scaleFromSQLType extracts the scale of "decimal(10,2)" style types.
func scaleFromSQLType(t string) int {
	open := strings.IndexByte(t, '(')
	closeIdx := strings.IndexByte(t, ')')
	if open < 0 || closeIdx < open {
		return -1
	}
	_, scale, found := strings.Cut(t[open+1:closeIdx], ",")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(scale))
	if err != nil {
		return -1
	}
	return n
}

func fieldByName(typ reflect.Type, name string) (reflect.StructField, bool) {
	for _, sf := range reflection.StructFields(typ) {
		if sf.Name == name {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
