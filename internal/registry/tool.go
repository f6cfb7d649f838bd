/*
Package registry defines the tool records agents register and the policy that
turns one tool into the independent text fragments stored in the collection.

A tool is never stored as a unit. Every command and every line of the example
text becomes its own fragment, tagged with the owning tool's name, so that a
task description can match the phrasing of a single command or usage example.
*/
package registry

import (
	"errors"
	"strings"
)

// SentinelName is the owner name of the permanent placeholder fragment.
// A match resolving to it means no registered tool was closer.
const SentinelName = "none"

// SentinelID is the storage key of the placeholder fragment.
const SentinelID = "none"

// ErrInvalidTool is returned when a registration payload is missing a field
// or carries a field of the wrong shape.
var ErrInvalidTool = errors.New("invalid tool")

// Tool is a capability registered by an agent.
type Tool struct {
	// Name identifies the tool. It is chosen by the caller and not required
	// to be unique.
	Name string `json:"name"`

	// Commands are example invocations, each indexed on its own.
	Commands []string `json:"commands"`

	// Examples is free text; every line is indexed on its own.
	Examples string `json:"examples"`
}

// Fragment is one searchable unit derived from a tool.
type Fragment struct {
	ID        string
	Text      string
	OwnerName string
}

// Decompose returns the fragment texts for a tool: the commands in order,
// followed by the example text split on newlines. Nothing is trimmed or
// deduplicated, and an empty example text yields one empty fragment.
func Decompose(tool Tool) []string {
	lines := strings.Split(tool.Examples, "\n")

	docs := make([]string, 0, len(tool.Commands)+len(lines))
	docs = append(docs, tool.Commands...)
	docs = append(docs, lines...)
	return docs
}

// Fragments decomposes a tool and assigns each text a fresh ID from newID.
func Fragments(tool Tool, newID func() string) []Fragment {
	docs := Decompose(tool)

	fragments := make([]Fragment, len(docs))
	for i, doc := range docs {
		fragments[i] = Fragment{
			ID:        newID(),
			Text:      doc,
			OwnerName: tool.Name,
		}
	}
	return fragments
}

// Sentinel returns the placeholder fragment seeded into every collection.
func Sentinel() Fragment {
	return Fragment{ID: SentinelID, Text: "", OwnerName: SentinelName}
}
