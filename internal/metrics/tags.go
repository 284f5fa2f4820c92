package metrics

import "fmt"

// Tag creates a "key:value" tag.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// AttrTag tags a metric with the attribute name.
func AttrTag(name string) string { return Tag("attr", name) }

// ClassTag tags a metric with the class name.
func ClassTag(name string) string { return Tag("class", name) }

// OwnerTag tags a metric with the owner identity.
func OwnerTag(id string) string { return Tag("owner", id) }

// StatTag tags a statistic kind such as get or failed_set.
func StatTag(stat string) string { return Tag("stat", stat) }

// CircuitStateTag tags a metric with a circuit breaker state.
func CircuitStateTag(state string) string { return Tag("circuit_state", state) }

// MergeTags returns base followed by tags without modifying either.
func MergeTags(base, tags []string) []string {
	if len(tags) == 0 {
		return base
	}
	if len(base) == 0 {
		return tags
	}
	out := make([]string, 0, len(base)+len(tags))
	out = append(out, base...)
	return append(out, tags...)
}
