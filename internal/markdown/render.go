// Package markdown flattens Jira rich-text bodies into plain markdown text.
package markdown

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dt-pm-tools/jira-loader/internal/jira"
)

// Labels used in place of ADF nodes that carry no readable text.
var opaqueLabels = map[string]string{
	"mediaSingle":          "Inline image",
	"mediaGroup":           "Image group",
	"media":                "Attachment",
	"extension":            "JIRA extension",
	"bodiedExtension":      "JIRA macro",
	"inlineExtension":      "Inline JIRA macro",
	"multiBodiedExtension": "Multi-body JIRA macro",
	"placeholder":          "Placeholder",
}

// Text decodes a raw description or comment body. REST v2 bodies are JSON
// strings and are returned verbatim; REST v3 bodies are ADF documents and
// are rendered to markdown. ok is false for a missing or null body.
func Text(raw json.RawMessage) (text string, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}

	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false, fmt.Errorf("decoding text body: %w", err)
		}
		return text, true, nil
	case '{':
		var doc jira.ADFNode
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", false, fmt.Errorf("decoding ADF body: %w", err)
		}
		return strings.TrimRight(Render(&doc), "\n"), true, nil
	default:
		return "", false, fmt.Errorf("unexpected body type starting with %q", raw[0])
	}
}

// Render converts an ADF node tree to markdown.
func Render(node *jira.ADFNode) string {
	if node == nil {
		return ""
	}
	var r renderer
	r.node(node, "")
	return r.String()
}

type renderer struct {
	strings.Builder
}

func (r *renderer) node(node *jira.ADFNode, listPrefix string) {
	switch node.Type {
	case "doc":
		r.children(node, "")

	case "paragraph":
		r.children(node, "")
		r.WriteString("\n\n")

	case "heading":
		level := 2
		if lf, ok := node.Attrs["level"].(float64); ok {
			level = int(lf)
		}
		r.WriteString(strings.Repeat("#", level) + " ")
		r.children(node, "")
		r.WriteString("\n\n")

	case "bulletList":
		for i := range node.Content {
			r.node(&node.Content[i], "- ")
		}
		r.WriteString("\n")

	case "orderedList":
		for i := range node.Content {
			r.node(&node.Content[i], fmt.Sprintf("%d. ", i+1))
		}
		r.WriteString("\n")

	case "listItem", "taskItem", "decisionItem":
		r.listItem(node, listPrefix)

	case "taskList", "decisionList":
		for i := range node.Content {
			r.node(&node.Content[i], "- ")
		}
		r.WriteString("\n")

	case "codeBlock":
		r.WriteString("```" + attrString(node, "language") + "\n")
		for _, child := range node.Content {
			r.WriteString(child.Text)
		}
		r.WriteString("\n```\n\n")

	case "blockquote", "panel":
		var inner renderer
		inner.children(node, "")
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			r.WriteString("> " + line + "\n")
		}
		r.WriteString("\n")

	case "expand", "nestedExpand":
		if title := attrString(node, "title"); title != "" {
			r.WriteString("**" + title + "**\n\n")
		}
		r.children(node, "")

	case "rule":
		r.WriteString("---\n\n")

	case "table":
		r.table(node)

	case "text":
		r.WriteString(applyMarks(node.Text, node.Marks))

	case "hardBreak":
		r.WriteString("\n")

	case "mention":
		r.WriteString("@" + strings.TrimPrefix(attrString(node, "text"), "@"))

	case "inlineCard", "blockCard", "embedCard":
		r.WriteString(fmt.Sprintf("[link](%s)", attrString(node, "url")))

	case "emoji":
		text := attrString(node, "text")
		if text == "" {
			text = attrString(node, "shortName")
		}
		r.WriteString(text)

	case "status":
		r.WriteString("[" + attrString(node, "text") + "]")

	case "date":
		r.WriteString(attrString(node, "timestamp"))

	default:
		if label, ok := opaqueLabels[node.Type]; ok {
			r.WriteString("[" + label + "]\n\n")
			return
		}
		r.children(node, "")
	}
}

func (r *renderer) children(node *jira.ADFNode, listPrefix string) {
	for i := range node.Content {
		r.node(&node.Content[i], listPrefix)
	}
}

// listItem writes the first paragraph on the bullet line and indents any
// nested lists under it.
func (r *renderer) listItem(node *jira.ADFNode, listPrefix string) {
	if node.Type == "taskItem" {
		if attrString(node, "state") == "DONE" {
			listPrefix += "[x] "
		} else {
			listPrefix += "[ ] "
		}
	}
	if len(node.Content) == 0 || node.Content[0].Type != "paragraph" {
		// Task and decision items hold inline content directly.
		r.WriteString(listPrefix)
		r.children(node, "")
		r.WriteString("\n")
		return
	}

	indent := strings.Repeat(" ", len(listPrefix))
	for i := range node.Content {
		child := &node.Content[i]
		switch {
		case i == 0:
			r.WriteString(listPrefix)
			r.children(child, "")
			r.WriteString("\n")
		case child.Type == "bulletList" || child.Type == "orderedList":
			for j := range child.Content {
				prefix := "- "
				if child.Type == "orderedList" {
					prefix = fmt.Sprintf("%d. ", j+1)
				}
				r.node(&child.Content[j], indent+prefix)
			}
		default:
			r.node(child, listPrefix)
		}
	}
}

func (r *renderer) table(node *jira.ADFNode) {
	var rows [][]string
	cols := 0
	for _, row := range node.Content {
		if row.Type != "tableRow" {
			continue
		}
		cells := make([]string, 0, len(row.Content))
		for _, cell := range row.Content {
			var buf renderer
			for i := range cell.Content {
				buf.children(&cell.Content[i], "")
			}
			text := strings.TrimSpace(buf.String())
			if cell.Type == "tableHeader" {
				for strings.HasPrefix(text, "**") && strings.HasSuffix(text, "**") && len(text) > 4 {
					text = text[2 : len(text)-2]
				}
			}
			cells = append(cells, text)
		}
		if len(cells) > cols {
			cols = len(cells)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	writeRow := func(cells []string) {
		for len(cells) < cols {
			cells = append(cells, "")
		}
		r.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	writeRow(rows[0])
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, row := range rows[1:] {
		writeRow(row)
	}
	r.WriteString("\n")
}

func applyMarks(text string, marks []jira.ADFMark) string {
	for _, mark := range marks {
		switch mark.Type {
		case "strong":
			text = "**" + text + "**"
		case "em":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		case "strike":
			text = "~~" + text + "~~"
		case "underline":
			text = "_" + text + "_"
		case "link":
			href, _ := mark.Attrs["href"].(string)
			text = fmt.Sprintf("[%s](%s)", text, href)
		}
	}
	return text
}

func attrString(node *jira.ADFNode, key string) string {
	s, _ := node.Attrs[key].(string)
	return s
}
