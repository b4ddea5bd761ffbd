package testhelper

import (
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EquateErrorMessage reports errors to be equal if both are nil or both have the same message.
var EquateErrorMessage = cmp.FilterValues(func(x, y any) bool {
	_, ok1 := x.(error)
	_, ok2 := y.(error)
	return ok1 && ok2
}, cmp.Comparer(func(x, y any) bool {
	xe := x.(error)
	ye := y.(error)
	if xe == nil || ye == nil {
		return xe == nil && ye == nil
	}
	return xe.Error() == ye.Error()
}))

// EquateNilEmpty treats nil slices and empty slices as equal.
var EquateNilEmpty = cmp.FilterValues(func(x, y any) bool {
	vx := reflect.ValueOf(x)
	vy := reflect.ValueOf(y)
	return (vx.Kind() == reflect.Slice || vx.Kind() == reflect.Array) &&
		(vy.Kind() == reflect.Slice || vy.Kind() == reflect.Array)
}, cmp.Comparer(func(x, y any) bool {
	vx := reflect.ValueOf(x)
	vy := reflect.ValueOf(y)

	// Handle nil cases
	if vx.IsNil() && vy.IsNil() {
		return true
	}
	if vx.IsNil() {
		return vy.Len() == 0
	}
	if vy.IsNil() {
		return vx.Len() == 0
	}

	// Both are non-nil, compare lengths and elements
	if vx.Len() != vy.Len() {
		return false
	}
	for i := 0; i < vx.Len(); i++ {
		if !cmp.Equal(vx.Index(i).Interface(), vy.Index(i).Interface()) {
			return false
		}
	}
	return true
}))

// NewTestDB opens a private in-memory sqlite database and migrates models into it.
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	return db
}
