package mermaid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/themovie-ai/server/internal/agent/workflow"
)

func TestGenerate_Routed(t *testing.T) {
	nodes := []workflow.NodeInfo{
		{Name: "router_node", Successors: []string{"chat_knowledgebase_node", "chat_recommendation_node"}, Branching: true},
		{Name: "chat_knowledgebase_node", Successors: []string{workflow.END}},
		{Name: "chat_recommendation_node", Successors: []string{workflow.END}},
	}

	got := Generate("router_node", nodes, nil)

	assert.Contains(t, got, "graph TD\n")
	assert.Contains(t, got, `START(("START"))`)
	assert.Contains(t, got, `END(("END"))`)
	assert.Contains(t, got, "START --> router_node")
	assert.Contains(t, got, `router_node{"router_node"}`)
	assert.Contains(t, got, "router_node -.-> chat_recommendation_node")
	assert.Contains(t, got, `chat_knowledgebase_node["chat_knowledgebase_node"]`)
	assert.Contains(t, got, "chat_knowledgebase_node --> END")
	assert.NotContains(t, got, "classDef")
}

func TestGenerate_Overlay(t *testing.T) {
	nodes := []workflow.NodeInfo{{Name: "chat_node", Successors: []string{workflow.END}}}
	got := Generate("chat_node", nodes, &Overlay{VisitedNodes: []string{"chat_node"}, CurrentNode: "chat_node"})

	assert.Contains(t, got, "class chat_node current")
	assert.NotContains(t, got, "class chat_node visited")
}
