package parser

import "github.com/lukeod/gonettopo/session"

// CleanOutput prepares raw device output for template matching. The cleanup
// rules live with the layer that produces the stream, so the buffer the
// prompt detector searches and the text the templates see stay identical.
func CleanOutput(s string) string {
	return session.StripArtifacts(s)
}
