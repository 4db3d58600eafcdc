package exc14n

import "strings"

// TokenizePrefixList splits a whitespace-separated InclusiveNamespaces
// PrefixList value into its prefixes. The #default keyword is rewritten to
// the empty string, which names the default namespace. A nil or blank input
// yields nil, meaning no inclusive carve-out is configured.
//
// Order is preserved and duplicates are kept; per the Exclusive C14N
// specification a repeated prefix is redundant work, not an error.
func TokenizePrefixList(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	prefixes := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == DefaultPrefixToken {
			f = ""
		}
		prefixes = append(prefixes, f)
	}
	return prefixes
}
