package crawler

// Dedupe concatenates selections in the order given and keeps only the first
// choice seen for each link. Later duplicates are discarded even when their
// justification differs.
func Dedupe(selections ...[]Choice) Result {
	seen := make(map[string]struct{})
	out := Result{}
	for _, selection := range selections {
		for _, choice := range selection {
			if _, ok := seen[choice.Link]; ok {
				continue
			}
			seen[choice.Link] = struct{}{}
			out = append(out, choice)
		}
	}
	return out
}
