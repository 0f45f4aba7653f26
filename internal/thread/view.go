package thread

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/learnup/learnup/internal/model"
)

// NoCommentsMessage is rendered when a thread has no root comments.
const NoCommentsMessage = "No comments yet. Be the first to comment!"

// AuthorLookup resolves the author shown next to a comment.
type AuthorLookup interface {
	DisplayAuthor(ref model.AuthorRef) model.Author
}

type RenderOptions struct {
	// Indent is repeated once per depth level. Defaults to four spaces.
	Indent string
	// ShowIDs prefixes each comment with its identifier.
	ShowIDs bool
	// TimeFormat formats the created timestamp. Defaults to "2006-01-02 15:04".
	TimeFormat string
}

// Render writes the forest as an indented outline.
func Render(w io.Writer, forest []Node, authors AuthorLookup, opts RenderOptions) error {
	if opts.Indent == "" {
		opts.Indent = "    "
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "2006-01-02 15:04"
	}
	if len(forest) == 0 {
		_, err := fmt.Fprintln(w, NoCommentsMessage)
		return err
	}

	var err error
	Walk(forest, func(n Node) bool {
		err = renderNode(w, n, authors, opts)
		return err == nil
	})
	return err
}

func renderNode(w io.Writer, n Node, authors AuthorLookup, opts RenderOptions) error {
	pad := strings.Repeat(opts.Indent, n.Depth)
	c := n.Comment

	author := model.UnknownAuthor(c.Author.ID)
	if authors != nil {
		author = authors.DisplayAuthor(c.Author)
	}

	var header strings.Builder
	header.WriteString(pad)
	if opts.ShowIDs {
		fmt.Fprintf(&header, "[%s] ", c.ID)
	}
	header.WriteString(author.DisplayName())
	if label := author.Role.Label(); label != "" {
		fmt.Fprintf(&header, " (%s)", label)
	}
	fmt.Fprintf(&header, " · %s", c.CreatedAt.Local().Format(opts.TimeFormat))
	if c.Edited() {
		header.WriteString(" (edited)")
	}
	if _, err := fmt.Fprintln(w, header.String()); err != nil {
		return err
	}

	for _, line := range strings.Split(c.Content, "\n") {
		if line == "" && c.Content == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", pad, line); err != nil {
			return err
		}
	}
	if len(c.Images) > 0 {
		if _, err := fmt.Fprintf(w, "%s  [%d attachment(s)]\n", pad, len(c.Images)); err != nil {
			return err
		}
	}
	return nil
}

// NewestFirst orders comments by creation time, most recent first.
func NewestFirst(a, b model.Comment) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

// OldestFirst orders comments by creation time, oldest first.
func OldestFirst(a, b model.Comment) bool {
	return a.CreatedAt.Before(b.CreatedAt)
}

// SortRoots returns a copy of forest with the roots reordered by less.
// Replies keep their order.
func SortRoots(forest []Node, less func(a, b model.Comment) bool) []Node {
	out := make([]Node, len(forest))
	copy(out, forest)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i].Comment, out[j].Comment)
	})
	return out
}
