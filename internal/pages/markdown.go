package pages

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type helpRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newHelpRenderer() *helpRenderer {
	return &helpRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: newHelpHTMLPolicy(),
	}
}

func newHelpHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "code")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// Render converts slot help markdown to sanitised HTML. Empty input renders as "".
func (r *helpRenderer) Render(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String())), nil
}
