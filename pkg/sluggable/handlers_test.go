package sluggable

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-sluggable/pkg/types"
)

func relativeConfig(opts types.HandlerOptions) types.ModelConfig {
	return types.ModelConfig{Model: "Post", Slugs: []types.SlugConfig{{
		Slug:     "Slug",
		Fields:   []string{"Title"},
		Handlers: []types.HandlerConfig{{Name: RelativeHandlerName, Options: opts}},
	}}}
}

func inversedConfig(opts types.HandlerOptions) types.ModelConfig {
	return types.ModelConfig{Model: "Category", Slugs: []types.SlugConfig{{
		Slug:     "Slug",
		Fields:   []string{"Title"},
		Handlers: []types.HandlerConfig{{Name: InversedRelativeHandlerName, Options: opts}},
	}}}
}

func treeConfig() types.ModelConfig {
	return types.ModelConfig{Model: "Node", Slugs: []types.SlugConfig{{
		Slug:     "Slug",
		Fields:   []string{"Title"},
		Handlers: []types.HandlerConfig{{Name: TreeHandlerName}},
	}}}
}

func TestRelativeHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    types.HandlerOptions
		record  *Post
		changes ChangeSet
		want    string
	}{
		{
			name:   "related slug is prepended",
			opts:   types.HandlerOptions{OptRelationField: "Category"},
			record: &Post{Title: "Hello World", Category: &Category{ID: 1, Slug: "news"}},
			want:   "news/hello-world",
		},
		{
			name:   "missing relation leaves the slug alone",
			opts:   types.HandlerOptions{OptRelationField: "Category"},
			record: &Post{Title: "Hello World"},
			want:   "hello-world",
		},
		{
			name:   "custom separator",
			opts:   types.HandlerOptions{OptRelationField: "Category", OptSeparator: ":"},
			record: &Post{Title: "Hello World", Category: &Category{ID: 1, Slug: "news"}},
			want:   "news:hello-world",
		},
		{
			name:   "related slug is urlized on request",
			opts:   types.HandlerOptions{OptRelationField: "Category", OptUrilize: "true"},
			record: &Post{Title: "Hello World", Category: &Category{ID: 1, Slug: "Big News"}},
			want:   "big-news/hello-world",
		},
		{
			name:   "other related field",
			opts:   types.HandlerOptions{OptRelationField: "Category", OptRelationSlugField: "Title"},
			record: &Post{Title: "Hello", Category: &Category{ID: 1, Title: "sport", Slug: "news"}},
			want:   "sport/hello",
		},
		{
			name:    "repointed relation regenerates the slug",
			opts:    types.HandlerOptions{OptRelationField: "Category"},
			record:  &Post{ID: 1, Title: "Hello", CategoryID: uintPtr(2), Category: &Category{ID: 2, Slug: "sport"}, Slug: "news/hello"},
			changes: ChangeSet{"CategoryID": {Old: uintPtr(1), New: uintPtr(2)}},
			want:    "sport/hello",
		},
		{
			name:    "unchanged relation keeps the slug",
			opts:    types.HandlerOptions{OptRelationField: "Category"},
			record:  &Post{ID: 1, Title: "Hello", CategoryID: uintPtr(2), Category: &Category{ID: 2, Slug: "sport"}, Slug: "news/hello"},
			changes: ChangeSet{},
			want:    "news/hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t, relativeConfig(tt.opts))
			l := NewListener(reg, testLogger())
			repos, _, _ := mockRepos()

			host := newFakeHost()
			if tt.changes == nil {
				host.insert(tt.record)
			} else {
				host.update(tt.record, tt.changes)
			}
			require.NoError(t, flush(t, l, host, repos))
			assert.Equal(t, tt.want, tt.record.Slug)
		})
	}
}

func TestRelativeHandler_RestoresTransliterator(t *testing.T) {
	reg := newTestRegistry(t, relativeConfig(types.HandlerOptions{OptRelationField: "Category"}))
	meta, _ := reg.Meta("Post")
	field := meta.Slugs[0]
	g := &Generation{
		Ctx:            context.Background(),
		Registry:       reg,
		Meta:           meta,
		Field:          field,
		IsInsert:       true,
		transliterator: func(text, separator string, record any) string { return text },
	}
	record := &Post{Category: &Category{Slug: "news"}}
	slug := "Hello"

	require.NoError(t, field.Handlers[0].OnPostBuild(g, record, &slug))
	assert.Equal(t, "news/Hello", g.Transliterator()(slug, "-", record))
	assert.Equal(t, "Hello", g.Transliterator()(slug, "-", record))
}

func TestRelativeHandler_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    types.HandlerOptions
		wantErr string
	}{
		{
			name:    "relation field is required",
			opts:    types.HandlerOptions{},
			wantErr: "invalid slug configuration for Post.Slug: relative handler requires option relation_field",
		},
		{
			name:    "relation field must be an association",
			opts:    types.HandlerOptions{OptRelationField: "Title"},
			wantErr: "invalid slug configuration for Post.Slug: relative handler: Post.Title is not an association",
		},
		{
			name:    "related slug field must be text",
			opts:    types.HandlerOptions{OptRelationField: "Category", OptRelationSlugField: "ID"},
			wantErr: "invalid slug configuration for Post.Slug: relative handler: Category has no string field ID",
		},
		{
			name:    "urilize must be a boolean",
			opts:    types.HandlerOptions{OptRelationField: "Category", OptUrilize: "maybe"},
			wantErr: "invalid slug configuration for Post.Slug: relative handler: option urilize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(nil, nil, &types.Config{Models: []types.ModelConfig{relativeConfig(tt.opts)}}, testModels...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestInversedRelativeHandler(t *testing.T) {
	t.Run("renamed owner rewrites the slugs of its related records", func(t *testing.T) {
		reg := newTestRegistry(t,
			inversedConfig(types.HandlerOptions{OptRelationModel: "Post", OptMappedBy: "Category"}),
			relativeConfig(types.HandlerOptions{OptRelationField: "Category", OptSeparator: ":"}),
		)
		l := NewListener(reg, testLogger())
		repos, slugRepo, _ := mockRepos()
		category := &Category{ID: 5, Title: "Sports", Slug: "news"}

		require.NoError(t, flush(t, l, newFakeHost().update(category, ChangeSet{"Title": {Old: "News", New: "Sports"}}), repos))

		require.Equal(t, "sports", category.Slug)
		want := []types.PrefixRewrite{{
			Model:       &Post{},
			Column:      "slug",
			Target:      "news:",
			Replacement: "sports:",
			Owner:       []types.Condition{{Column: "category_id", Value: uint(5)}},
		}}
		if diff := cmp.Diff(want, slugRepo.OwnedRewrites); diff != "" {
			t.Errorf("Rewrite mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("inserts and unchanged slugs rewrite nothing", func(t *testing.T) {
		reg := newTestRegistry(t,
			inversedConfig(types.HandlerOptions{OptRelationModel: "Post", OptMappedBy: "Category"}),
			slugConfig("Post", "Slug", "Title"),
		)
		l := NewListener(reg, testLogger())
		repos, slugRepo, _ := mockRepos()

		require.NoError(t, flush(t, l, newFakeHost().insert(&Category{Title: "News"}), repos))
		unchanged := &Category{ID: 5, Title: "news", Slug: "news"}
		require.NoError(t, flush(t, l, newFakeHost().update(unchanged, ChangeSet{"Title": {Old: "News", New: "news"}}), repos))

		require.Empty(t, slugRepo.OwnedRewrites)
	})
}

func TestInversedRelativeHandler_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    types.HandlerOptions
		related types.ModelConfig
		wantErr string
	}{
		{
			name:    "options are required",
			opts:    types.HandlerOptions{OptRelationModel: "Post"},
			related: slugConfig("Post", "Slug", "Title"),
			wantErr: "inversed relative handler: options relation_model and mapped_by are required",
		},
		{
			name:    "related model needs a slug configuration",
			opts:    types.HandlerOptions{OptRelationModel: "Node", OptMappedBy: "Parent"},
			related: slugConfig("Post", "Slug", "Title"),
			wantErr: "inversed relative handler: related model Node has no slug configuration",
		},
		{
			name:    "mapped by must be a belongs-to association",
			opts:    types.HandlerOptions{OptRelationModel: "Post", OptMappedBy: "Title"},
			related: slugConfig("Post", "Slug", "Title"),
			wantErr: "inversed relative handler: Post.Title must be a belongs-to association",
		},
		{
			name:    "mapped by must point back",
			opts:    types.HandlerOptions{OptRelationModel: "Node", OptMappedBy: "Parent"},
			related: slugConfig("Node", "Slug", "Title"),
			wantErr: "inversed relative handler: Node.Parent does not reference Category",
		},
		{
			name:    "inverse slug field must be a slug",
			opts:    types.HandlerOptions{OptRelationModel: "Post", OptMappedBy: "Category", OptInverseSlugField: "Title"},
			related: slugConfig("Post", "Slug", "Title"),
			wantErr: "inversed relative handler: Post has no slug field Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &types.Config{Models: []types.ModelConfig{inversedConfig(tt.opts), tt.related}}
			_, err := NewRegistry(nil, nil, cfg, testModels...)
			require.ErrorContains(t, err, "invalid slug configuration for Category.Slug: "+tt.wantErr)
		})
	}
}

func TestTreeHandler(t *testing.T) {
	reg := newTestRegistry(t, treeConfig())

	t.Run("child slug is prefixed with the parent slug", func(t *testing.T) {
		l := NewListener(reg, testLogger())
		repos, slugRepo, _ := mockRepos()
		child := &Node{Title: "Child", Parent: &Node{ID: 1, Slug: "root"}}

		require.NoError(t, flush(t, l, newFakeHost().insert(child), repos))

		require.Equal(t, "root/child", child.Slug)
		require.Empty(t, slugRepo.Rewrites)
	})

	t.Run("renamed node moves its descendants", func(t *testing.T) {
		l := NewListener(reg, testLogger())
		repos, slugRepo, _ := mockRepos()
		node := &Node{ID: 1, Title: "Base", Slug: "root"}

		require.NoError(t, flush(t, l, newFakeHost().update(node, ChangeSet{"Title": {Old: "Root", New: "Base"}}), repos))

		require.Equal(t, "base", node.Slug)
		want := []types.PrefixRewrite{{Model: &Node{}, Column: "slug", Target: "root/", Replacement: "base/"}}
		if diff := cmp.Diff(want, slugRepo.Rewrites); diff != "" {
			t.Errorf("Rewrite mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("moved node takes the new parent slug", func(t *testing.T) {
		l := NewListener(reg, testLogger())
		repos, slugRepo, _ := mockRepos()
		node := &Node{ID: 3, Title: "Child", ParentID: uintPtr(2), Parent: &Node{ID: 2, Slug: "other"}, Slug: "root/child"}

		require.NoError(t, flush(t, l, newFakeHost().update(node, ChangeSet{"ParentID": {Old: uintPtr(1), New: uintPtr(2)}}), repos))

		require.Equal(t, "other/child", node.Slug)
		require.Len(t, slugRepo.Rewrites, 1)
		require.Equal(t, "root/child/", slugRepo.Rewrites[0].Target)
		require.Equal(t, "other/child/", slugRepo.Rewrites[0].Replacement)
	})

	t.Run("parent must reference the same model", func(t *testing.T) {
		cfg := treeConfig()
		cfg.Model = "Post"
		cfg.Slugs[0].Handlers[0].Options = types.HandlerOptions{OptParentRelationField: "Category"}
		_, err := NewRegistry(nil, nil, &types.Config{Models: []types.ModelConfig{cfg}}, testModels...)
		require.ErrorContains(t, err, "invalid slug configuration for Post.Slug: tree handler: Category must be a belongs-to association to Post")
	})
}
