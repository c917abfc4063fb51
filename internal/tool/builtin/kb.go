package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flemzord/chatd/internal/kb"
	"github.com/flemzord/chatd/internal/tool"
)

// KBSearch exposes the knowledge base as the kb_search tool.
type KBSearch struct {
	kb *kb.KB
}

// NewKBSearch creates the kb_search tool backed by k.
func NewKBSearch(k *kb.KB) *KBSearch {
	return &KBSearch{kb: k}
}

func (s *KBSearch) Name() string { return "kb_search" }

func (s *KBSearch) Description() string {
	return "Search the knowledge base for office hours / grading policy / percentages."
}

func (s *KBSearch) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)
}

type kbArgs struct {
	Query string `json:"query"`
}

type kbResult struct {
	Results map[string]string `json:"results"`
}

// Execute runs a section search. A query with no matching section is a
// not_found error; the model recovers from it and tells the user.
func (s *KBSearch) Execute(_ context.Context, args json.RawMessage) tool.Output {
	var in kbArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "invalid arguments: "+err.Error())
	}
	if strings.TrimSpace(in.Query) == "" {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "query is required")
	}

	hits := s.kb.Search(in.Query)
	if len(hits) == 0 {
		return tool.Errorf(tool.ErrorKindNotFound, "no knowledge base section matches the query")
	}

	res := kbResult{Results: make(map[string]string, len(hits))}
	for _, h := range hits {
		res.Results[h.Title] = h.Body
	}

	out, _ := json.Marshal(res)
	return tool.Output{Content: string(out)}
}
