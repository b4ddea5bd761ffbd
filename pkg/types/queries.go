package types

// Condition restricts a slug query to rows whose column equals Value.
// A nil Value matches NULL.
type Condition struct {
	Column string
	Value  any
}

// SimilarSlugQuery selects persisted slugs of one model that start with Prefix.
type SimilarSlugQuery struct {
	// Model is a pointer to a zero value of the record type.
	Model  any
	Column string
	Prefix string
	// Groups are the unique-group conditions of the record being generated.
	Groups []Condition
	// Exclude holds the primary key of the record itself when it is already persisted.
	Exclude []Condition
}

// PrefixRewrite replaces Target with Replacement at the start of every matching slug.
type PrefixRewrite struct {
	Model       any
	Column      string
	Target      string
	Replacement string
	Groups      []Condition
	// Owner limits an owned rewrite to the rows referencing one record.
	Owner []Condition
}
