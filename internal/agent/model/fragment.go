package model

// Fragment is one incremental piece of output pushed to the streaming
// consumer. The JSON shape is what SSE clients receive.
type Fragment struct {
	Messages []string    `json:"messages"`
	NodeName string      `json:"node_name"`
	Type     MessageType `json:"type"`
}

// NewAIFragment wraps a model chunk with the identity of the node that
// produced it.
func NewAIFragment(nodeName, chunk string) Fragment {
	return Fragment{
		Messages: []string{chunk},
		NodeName: nodeName,
		Type:     MessageTypeAI,
	}
}

// Text concatenates the fragment payload.
func (f Fragment) Text() string {
	switch len(f.Messages) {
	case 0:
		return ""
	case 1:
		return f.Messages[0]
	}
	var n int
	for _, m := range f.Messages {
		n += len(m)
	}
	b := make([]byte, 0, n)
	for _, m := range f.Messages {
		b = append(b, m...)
	}
	return string(b)
}
