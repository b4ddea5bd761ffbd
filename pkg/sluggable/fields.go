package sluggable

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"gorm.io/gorm/schema"

	"gorm-sluggable/pkg/types"
)

// indirect returns the struct value behind record.
func indirect(record any) reflect.Value {
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// FieldValue returns the value of field in record with pointers dereferenced.
// Nil pointers yield nil.
func FieldValue(ctx context.Context, field *schema.Field, record any) any {
	rv := indirect(record)
	if !rv.IsValid() {
		return nil
	}
	return deref(field.ReflectValueOf(ctx, rv))
}

func deref(rv reflect.Value) any {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// slugValue returns the current slug and whether it is NULL.
func slugValue(ctx context.Context, field *schema.Field, record any) (string, bool) {
	v := FieldValue(ctx, field, record)
	if v == nil {
		return "", true
	}
	return reflect.ValueOf(v).String(), false
}

// setSlugValue writes value into the slug field; nil stores NULL in a pointer field.
func setSlugValue(ctx context.Context, field *schema.Field, record any, value *string) {
	rv := field.ReflectValueOf(ctx, indirect(record))
	if rv.Kind() == reflect.Ptr {
		if value == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return
		}
		ptr := reflect.New(rv.Type().Elem())
		ptr.Elem().SetString(*value)
		rv.Set(ptr)
		return
	}
	if value == nil {
		rv.SetString("")
		return
	}
	rv.SetString(*value)
}

// stringify renders a source field value for slug building.
func stringify(v any, dateFormat string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(dateFormat)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	default:
		return fmt.Sprint(v)
	}
}

// PropertyValue returns the value of the exported struct field name of record, with
// pointers dereferenced, and false when a nil pointer is met or the field is missing.
func PropertyValue(record any, name string) (any, bool) {
	rv := indirect(record)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return nil, false
	}
	v := deref(fv)
	return v, v != nil
}

// relatedRecord returns a pointer to the record reached from record through name.
func relatedRecord(record any, name string) (any, bool) {
	rv := indirect(record)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return nil, false
	}
	switch fv.Kind() {
	case reflect.Ptr:
		if fv.IsNil() {
			return nil, false
		}
		return fv.Interface(), true
	case reflect.Struct:
		if fv.CanAddr() {
			return fv.Addr().Interface(), true
		}
		return fv.Interface(), true
	default:
		return nil, false
	}
}

// groupConditions returns the unique-group conditions of record for field.
func groupConditions(ctx context.Context, field *SlugField, record any) []types.Condition {
	if len(field.Groups) == 0 {
		return nil
	}
	conds := make([]types.Condition, 0, len(field.Groups))
	for _, group := range field.Groups {
		conds = append(conds, types.Condition{Column: group.DBName, Value: FieldValue(ctx, group, record)})
	}
	return conds
}

// scopeKey encodes group conditions as a ledger scope.
func scopeKey(conds []types.Condition) string {
	if len(conds) == 0 {
		return ""
	}
	key := ""
	for _, cond := range conds {
		if cond.Value == nil {
			key += cond.Column + "=<nil>;"
			continue
		}
		key += fmt.Sprintf("%s=%T:%v;", cond.Column, cond.Value, cond.Value)
	}
	return key
}

// identity returns the persisted primary key of record. Primary key values changed in
// this cycle are reported with their old value.
func identity(ctx context.Context, meta *RecordMeta, record any, changes ChangeSet) []types.Condition {
	conds := make([]types.Condition, 0, len(meta.Schema.PrimaryFields))
	for _, pk := range meta.Schema.PrimaryFields {
		value := FieldValue(ctx, pk, record)
		if change, ok := changes[pk.Name]; ok {
			value = change.Old
		}
		conds = append(conds, types.Condition{Column: pk.DBName, Value: value})
	}
	return conds
}

// IdentityString renders the single primary key of a record as stored in history entries.
func IdentityString(ctx context.Context, meta *RecordMeta, record any) string {
	pk := meta.PrimaryField()
	if pk == nil {
		return ""
	}
	return stringify(FieldValue(ctx, pk, record), time.RFC3339Nano)
}
