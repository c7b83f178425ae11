package authoring

import (
	"strings"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring/parse"
)

func itemKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mergeItems prepends incoming items to ideas, keeping their order and
// dropping any whose trimmed, case-folded text is already present. It
// returns the merged copy and the number of items added per category.
func mergeItems(ideas types.Ideas, incoming map[string][]string) (types.Ideas, map[string]int) {
	out := ideas.Clone()
	added := map[string]int{}
	for cat, items := range incoming {
		if len(items) == 0 {
			continue
		}
		seen := map[string]bool{}
		for _, existing := range out[cat] {
			seen[itemKey(existing)] = true
		}
		fresh := make([]string, 0, len(items))
		for _, it := range items {
			it = strings.TrimSpace(it)
			k := itemKey(it)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			fresh = append(fresh, it)
		}
		if len(fresh) == 0 {
			continue
		}
		out[cat] = append(fresh, out[cat]...)
		added[cat] = len(fresh)
	}
	return out, added
}

func checkCategory(category string) error {
	if !parse.IsCategory(category) {
		return &UnknownCategoryError{Category: category}
	}
	return nil
}

// addItem prepends text to category. Blank text and duplicates are ignored.
func addItem(ideas types.Ideas, category, text string) (types.Ideas, bool, error) {
	if err := checkCategory(category); err != nil {
		return ideas, false, err
	}
	out, added := mergeItems(ideas, map[string][]string{category: {text}})
	return out, added[category] > 0, nil
}

// deleteItem removes the item at index. An out-of-range index is a no-op.
func deleteItem(ideas types.Ideas, category string, index int) (types.Ideas, bool, error) {
	if err := checkCategory(category); err != nil {
		return ideas, false, err
	}
	list := ideas[category]
	if index < 0 || index >= len(list) {
		return ideas, false, nil
	}
	out := ideas.Clone()
	out[category] = append(out[category][:index:index], out[category][index+1:]...)
	return out, true, nil
}

// moveItem removes the item at index from one category and puts it at the
// front of another. Both edits land in the same returned copy.
func moveItem(ideas types.Ideas, from string, index int, to string) (types.Ideas, bool, error) {
	if err := checkCategory(from); err != nil {
		return ideas, false, err
	}
	if err := checkCategory(to); err != nil {
		return ideas, false, err
	}
	list := ideas[from]
	if index < 0 || index >= len(list) {
		return ideas, false, nil
	}
	if from == to {
		if index == 0 {
			return ideas, false, nil
		}
		out := ideas.Clone()
		item := out[from][index]
		rest := append(out[from][:index:index], out[from][index+1:]...)
		out[from] = append([]string{item}, rest...)
		return out, true, nil
	}
	out := ideas.Clone()
	item := out[from][index]
	out[from] = append(out[from][:index:index], out[from][index+1:]...)
	out[to] = append([]string{item}, out[to]...)
	return out, true, nil
}
