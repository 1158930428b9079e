package mermaid

import (
	"fmt"
	"strings"

	"github.com/themovie-ai/server/internal/agent/workflow"
)

// Overlay highlights the nodes of one run on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// Generate produces a Mermaid flowchart of a compiled graph.
// START and END are circles, branching nodes are rhombi and every other node
// is a rectangle. Branch edges are dotted.
func Generate(entry string, nodes []workflow.NodeInfo, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("    %s((\"START\"))\n", sanitizeID(workflow.START)))
	sb.WriteString(fmt.Sprintf("    %s((\"END\"))\n", sanitizeID(workflow.END)))
	if entry != "" {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeID(workflow.START), sanitizeID(entry)))
	}

	for _, node := range nodes {
		safeID := sanitizeID(node.Name)
		opener, closer := "[", "]"
		if node.Branching {
			opener, closer = "{", "}"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node.Name, closer))

		arrow := "-->"
		if node.Branching {
			arrow = "-.->"
		}
		for _, succ := range node.Successors {
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeID(succ)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    classDef visited fill:#e0f7fa,stroke:#006064,stroke-width:2px;\n")
		sb.WriteString("    classDef current fill:#fff9c4,stroke:#fbc02d,stroke-width:4px;\n")
		for _, visited := range overlay.VisitedNodes {
			if visited == overlay.CurrentNode {
				continue
			}
			sb.WriteString(fmt.Sprintf("    class %s visited\n", sanitizeID(visited)))
		}
		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current\n", sanitizeID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

// sanitizeID maps a node name to a Mermaid id. The markers are upper-cased
// because a lowercase "end" closes a Mermaid block.
func sanitizeID(id string) string {
	switch id {
	case workflow.START:
		return "START"
	case workflow.END:
		return "END"
	}
	r := strings.NewReplacer("/", "_", "-", "_", ".", "_", " ", "_")
	return r.Replace(id)
}
