package sluggable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"k8s.io/apimachinery/pkg/util/sets"

	"gorm-sluggable/pkg/types"
)

// resolver makes a candidate slug unique among the persisted records of its scope and
// the records inserted earlier in the same commit cycle.
type resolver struct {
	g      *Generation
	ledger *Ledger
	record any
}

func newResolver(g *Generation, ledger *Ledger, record any) *resolver {
	return &resolver{g: g, ledger: ledger, record: record}
}

// resolve returns candidate, or candidate suffixed with the separator and the lowest free
// counter. When the suffixed slug does not fit the column, the base is truncated and the
// search continues from the same counter magnitude. The base shrinks on every round.
func (r *resolver) resolve(candidate string) (string, error) {
	sep := r.g.Field.Config.Separator
	maxLength := r.g.Field.MaxLength
	exponent := 0
	recursing := false

	for {
		similar, err := r.similar(candidate)
		if err != nil {
			return "", err
		}
		if !recursing {
			similar = filterSuffixed(similar, candidate, sep)
		}
		if len(similar) == 0 {
			return candidate, nil
		}

		taken := sets.New(similar...)
		i := pow10(exponent)
		generated := candidate
		if recursing || taken.Has(generated) {
			for {
				generated = candidate + sep + strconv.Itoa(i)
				i++
				if !taken.Has(generated) {
					break
				}
			}
		}

		if maxLength <= 0 || utf8.RuneCountInString(generated) <= maxLength {
			return generated, nil
		}

		digits := len(strconv.Itoa(i))
		room := maxLength - digits - utf8.RuneCountInString(sep)
		if room <= 0 {
			return "", r.invalid("max length %d leaves no room for a unique suffix", maxLength)
		}
		base := strings.TrimSuffix(truncate(generated, room), sep)
		if base == "" || utf8.RuneCountInString(base) >= utf8.RuneCountInString(candidate) {
			return "", r.invalid("cannot shorten %q to a unique slug of at most %d characters", candidate, maxLength)
		}

		candidate = base
		exponent = digits - 1
		recursing = true
	}
}

// similar returns the persisted and in-flight slugs of the scope starting with prefix.
func (r *resolver) similar(prefix string) ([]string, error) {
	g := r.g
	groups := groupConditions(g.Ctx, g.Field, r.record)

	query := types.SimilarSlugQuery{
		Model:  g.Meta.NewModel(),
		Column: g.Field.Field.DBName,
		Prefix: prefix,
		Groups: groups,
	}
	if !g.IsInsert {
		query.Exclude = identity(g.Ctx, g.Meta, r.record, g.Changes(r.record))
	}

	persisted, err := g.Repos.Slugs.FindSimilarSlugs(g.Ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find slugs similar to %q for %s.%s: %w", prefix, g.Meta.Name, g.Field.Name(), err)
	}
	return append(persisted, r.ledger.Similar(g.Meta.Name, g.Field.Name(), scopeKey(groups), prefix)...), nil
}

func (r *resolver) invalid(format string, args ...any) error {
	return &ValidationError{Model: r.g.Meta.Name, Field: r.g.Field.Name(), Reason: fmt.Sprintf(format, args...)}
}

// filterSuffixed keeps the slugs equal to candidate or to candidate followed by the
// separator and digits. A purely numeric title is indistinguishable from a counter.
func filterSuffixed(slugs []string, candidate, sep string) []string {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(candidate) + "($|" + regexp.QuoteMeta(sep) + `\d+$)`)
	kept := slugs[:0:0]
	for _, slug := range slugs {
		if pattern.MatchString(slug) {
			kept = append(kept, slug)
		}
	}
	return kept
}

func pow10(exponent int) int {
	i := 1
	for ; exponent > 0; exponent-- {
		i *= 10
	}
	return i
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
