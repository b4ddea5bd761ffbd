package sluggable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gorm-sluggable/pkg/types"
)

func TestLedger(t *testing.T) {
	l := NewLedger()
	l.Record("Article", "Slug", "", "post")
	l.Record("Article", "Slug", "", "post-1")
	l.Record("Article", "Slug", "tenant_id=uint:2;", "post")
	l.Record("Article", "Code", "", "post")
	l.Record("Page", "Slug", "", "post")

	assert.Equal(t, []string{"post", "post-1"}, l.Similar("Article", "Slug", "", "post"))
	assert.Equal(t, []string{"post-1"}, l.Similar("Article", "Slug", "", "post-"))
	assert.Equal(t, []string{"post"}, l.Similar("Article", "Slug", "tenant_id=uint:2;", "post"))
	assert.Empty(t, l.Similar("Article", "Slug", "", "other"))
	assert.Empty(t, l.Similar("Short", "Slug", "", "post"))
	assert.Equal(t, 5, l.Len())

	l.Reset()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Similar("Article", "Slug", "", "post"))
}

func TestScopeKey(t *testing.T) {
	assert.Empty(t, scopeKey(nil))
	assert.Equal(t, "tenant_id=uint:3;", scopeKey([]types.Condition{{Column: "tenant_id", Value: uint(3)}}))
	assert.Equal(t, "parent_id=<nil>;kind=string:a;", scopeKey([]types.Condition{
		{Column: "parent_id"},
		{Column: "kind", Value: "a"},
	}))
	// values of different types never share a scope
	assert.NotEqual(t, scopeKey([]types.Condition{{Column: "n", Value: 3}}), scopeKey([]types.Condition{{Column: "n", Value: "3"}}))
}
