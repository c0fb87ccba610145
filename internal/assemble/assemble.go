// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assemble

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/notechat/internal/asset"
	"github.com/jeranaias/notechat/internal/provider"
	"github.com/jeranaias/notechat/internal/transcript"
	"github.com/jeranaias/notechat/internal/vault"
)

// =============================================================================
// PREAMBLE MARKERS
// =============================================================================

// The preamble framing is a fixed contract; the system prompt instructs the
// model to treat it as context rather than structure.
const (
	markerBeginDocuments = "BEGIN DOCUMENTS"
	markerEndDocuments   = "END DOCUMENTS"
	markerNoDocuments    = "NO SHARED DOCUMENTS"
	markerBeginChat      = "BEGIN CHAT"
)

// charsPerToken is the deterministic characters-per-token divisor for the
// approximate context size estimate.
const charsPerToken = 3.35

// =============================================================================
// RESULT TYPE
// =============================================================================

// Result is an assembled context: the ordered message list and the number
// of images dropped because the target model does not accept image input.
type Result struct {
	Messages      []provider.Message
	OmittedImages int
}

// =============================================================================
// ASSEMBLY
// =============================================================================

// Assemble builds the message list for the entries strictly before the
// target entry. Muted documents are skipped; readable documents are inlined
// into the first message's preamble; per-document failures become inline
// markers so one bad document cannot block the chat.
func Assemble(entries []*transcript.Entry, docs []*transcript.Document, v vault.Vault, includeImages bool) Result {
	var res Result

	// Document pass: text blocks plus any image attachments for the
	// first message.
	var blocks []string
	var docImages []*asset.Image
	imageN := 0

	for _, doc := range docs {
		if doc.Muted {
			continue
		}
		text, img := renderDocument(doc, v, includeImages, &imageN, &res.OmittedImages)
		blocks = append(blocks, wrapDocument(doc.Path, text))
		if img != nil {
			docImages = append(docImages, img)
		}
	}

	// Entry pass: one message per entry with a resolvable swipe.
	for _, entry := range entries {
		swipe := entry.SelectedSwipe()
		if swipe == nil {
			continue
		}

		msg := provider.Message{
			Role: string(entry.Role),
			Text: swipe.DisplayContent(),
		}
		if len(swipe.Images) > 0 {
			if includeImages {
				msg.Images = append(msg.Images, swipe.Images...)
			} else {
				res.OmittedImages += len(swipe.Images)
			}
		}
		res.Messages = append(res.Messages, msg)
	}

	// Providers reject empty message lists; guarantee at least one turn.
	if len(res.Messages) == 0 {
		res.Messages = append(res.Messages, provider.NewUserMessage(""))
	}

	// Preamble goes onto the first message, document images with it.
	first := &res.Messages[0]
	first.Text = buildPreamble(blocks, res.OmittedImages) + first.Text
	if len(docImages) > 0 {
		first.Images = append(docImages, first.Images...)
	}

	return res
}

// renderDocument produces the text body of one document block, plus an
// image attachment when the document is an inlinable image.
func renderDocument(doc *transcript.Document, v vault.Vault, includeImages bool, imageN, omitted *int) (string, *asset.Image) {
	if asset.IsImagePath(doc.Path) {
		mime := asset.MIMEForPath(doc.Path)
		if !includeImages {
			*omitted++
			return fmt.Sprintf("IMAGE OMITTED (%s)", mime), nil
		}
		data, err := v.ReadBinary(doc.Path)
		if err != nil {
			return fmt.Sprintf("ERROR READING DOCUMENT: %v", err), nil
		}
		*imageN++
		return fmt.Sprintf("IMAGE %d (%s)", *imageN, mime), asset.NewImage(data, mime)
	}

	text, err := v.ReadText(doc.Path)
	if err != nil {
		if errors.Is(err, vault.ErrNotText) {
			return "UNKNOWN BINARY CONTENT", nil
		}
		return fmt.Sprintf("ERROR READING DOCUMENT: %v", err), nil
	}
	return text, nil
}

// wrapDocument frames one document's body with its path markers.
func wrapDocument(path, body string) string {
	return fmt.Sprintf("BEGIN DOCUMENT (%s)\n%s\nEND DOCUMENT", path, body)
}

// buildPreamble renders the full document preamble prepended to the first
// message.
func buildPreamble(blocks []string, omitted int) string {
	var b strings.Builder

	if len(blocks) == 0 {
		b.WriteString(markerNoDocuments)
		b.WriteString("\n")
	} else {
		b.WriteString(markerBeginDocuments)
		b.WriteString("\n")
		for _, block := range blocks {
			b.WriteString(block)
			b.WriteString("\n")
		}
	}

	if omitted > 0 {
		fmt.Fprintf(&b, "NOTE: %d image(s) omitted because the current model does not accept image input\n", omitted)
	}

	b.WriteString(markerEndDocuments)
	b.WriteString("\n")
	b.WriteString(markerBeginChat)
	b.WriteString("\n")

	return b.String()
}

// =============================================================================
// TOKEN ESTIMATE
// =============================================================================

// ApproxTokenCount estimates the token count of an assembled context as
// floor(total characters / 3.35). Deliberately approximate; real tokenizers
// differ per model.
func ApproxTokenCount(messages []provider.Message) int {
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m.Text)
	}
	return int(float64(total) / charsPerToken)
}
