package parser

import (
	"strings"

	"github.com/poiesic/filingrag/core"
)

// SelectSections returns the top-level titled sections whose lower-cased,
// trimmed title starts with a target prefix, in document order.
// A section is tagged with the first target it matches. Several sections
// matching the same prefix are all returned.
func SelectSections(tree *core.Tree, targets []core.Target) []*core.Section {
	prefixes := make([]string, len(targets))
	for i, target := range targets {
		prefixes[i] = strings.ToLower(strings.TrimSpace(target.Prefix))
	}

	var sections []*core.Section
	for _, node := range tree.Sections() {
		if _, ok := node.Element.(*core.TitleElement); !ok {
			continue
		}
		title := strings.TrimSpace(node.Title())
		normalized := strings.ToLower(title)
		for i, prefix := range prefixes {
			if prefix == "" || !strings.HasPrefix(normalized, prefix) {
				continue
			}
			target := targets[i]
			if target.Mode == "" {
				target.Mode = core.RenderAll
			}
			sections = append(sections, &core.Section{
				Title:  title,
				Target: target,
				Node:   node,
			})
			break
		}
	}
	return sections
}
