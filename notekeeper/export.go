package notekeeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// ExportMarkdown restores a page's highlights and converts the annotated
// document to Markdown, followed by a notes section listing each
// annotation with its content and anchored text. Useful for archiving a
// read page into a knowledge base.
func (k *Keeper) ExportMarkdown(ctx context.Context, pageURL, pageHTML string) (string, error) {
	annotated, _, err := k.RestoreHTML(ctx, pageURL, pageHTML)
	if err != nil {
		return "", err
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	body, err := conv.ConvertString(annotated, converter.WithDomain(pageURL))
	if err != nil {
		return "", fmt.Errorf("notekeeper: convert to markdown: %w", err)
	}

	notes, err := k.store.ListByURL(ctx, pageURL)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")

	if len(notes) > 0 {
		sb.WriteString("\n---\n\n## Notes\n\n")
		for i, n := range notes {
			created := time.UnixMilli(n.CreatedAt).UTC().Format("2006-01-02")
			fmt.Fprintf(&sb, "%d. > %s\n", i+1, n.Locator.TextSnippet)
			if n.Content != "" {
				fmt.Fprintf(&sb, "   %s\n", n.Content)
			}
			fmt.Fprintf(&sb, "   _%s_\n\n", created)
		}
	}

	return sb.String(), nil
}
