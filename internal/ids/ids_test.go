package ids

import "testing"

func TestNewIsUniqueAndSortable(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
		if prev != "" && id <= prev {
			t.Fatalf("ids not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}
