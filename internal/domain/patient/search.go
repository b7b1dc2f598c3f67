package patient

import "strings"

// Filter keeps the patients whose name or classification code contains
// query, ignoring case. An empty query returns patients unchanged. The query
// is not trimmed, so surrounding spaces take part in the match.
func Filter(patients []*Patient, query string) []*Patient {
	if query == "" {
		return patients
	}
	q := strings.ToLower(query)

	out := make([]*Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
			continue
		}
		if p.ClassificationCode != nil && strings.Contains(strings.ToLower(*p.ClassificationCode), q) {
			out = append(out, p)
		}
	}
	return out
}
