package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// PlainRenderer renders the filing document as plain text in USPTO section
// order: specification paragraphs first, then the numbered claim set, then
// the abstract.
type PlainRenderer struct{}

var sectionHeadings = map[model.SpecSection]string{
	model.SectionTechnicalField: "TECHNICAL FIELD",
	model.SectionBackground:     "BACKGROUND",
	model.SectionSummary:        "SUMMARY",
	model.SectionDrawings:       "BRIEF DESCRIPTION OF THE DRAWINGS",
	model.SectionDetailed:       "DETAILED DESCRIPTION",
	model.SectionDefinitions:    "DEFINITIONS",
	model.SectionAbstract:       "ABSTRACT",
}

func (PlainRenderer) Render(_ context.Context, matter model.Matter, doc model.SpecDocument, graph model.ClaimGraph) ([]byte, string, error) {
	var b strings.Builder

	title := doc.Title
	if title == "" {
		title = matter.Title
	}
	fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(title))
	if matter.ReferenceNumber != nil {
		fmt.Fprintf(&b, "Attorney Docket No.: %s\n\n", *matter.ReferenceNumber)
	}

	var current model.SpecSection
	para := 0
	var abstract []string
	for _, p := range doc.Sections {
		if p.Section == model.SectionAbstract {
			abstract = append(abstract, p.Text)
			continue
		}
		if p.Section != current {
			current = p.Section
			heading := sectionHeadings[current]
			if heading == "" {
				heading = strings.ToUpper(string(current))
			}
			fmt.Fprintf(&b, "%s\n\n", heading)
		}
		para++
		fmt.Fprintf(&b, "[%04d] %s\n\n", para, p.Text)
	}

	b.WriteString("CLAIMS\n\nWhat is claimed is:\n\n")
	for _, node := range graph.Nodes {
		fmt.Fprintf(&b, "%s. %s\n\n", node.ID, node.Text)
	}

	if len(abstract) > 0 {
		b.WriteString("ABSTRACT\n\n")
		for _, text := range abstract {
			fmt.Fprintf(&b, "%s\n\n", text)
		}
	}

	filename := fmt.Sprintf("application-%s.txt", matter.ID)
	return []byte(b.String()), filename, nil
}
