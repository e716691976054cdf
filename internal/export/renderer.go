// Package export renders finished RFP responses for delivery.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Document is a fully assembled RFP response ready for rendering.
type Document struct {
	RFPName     string
	OrgName     string
	GeneratedAt time.Time
	Entries     []Entry
}

// Entry is one question and its answer.
type Entry struct {
	Question   string
	Answer     string
	Confidence float64
}

// Renderer turns a response document into a downloadable artifact.
type Renderer interface {
	Render(ctx context.Context, doc Document) (io.Reader, error)
}

type pdfRenderer struct{}

// NewPDFRenderer returns the maroto backed PDF renderer.
func NewPDFRenderer() Renderer {
	return &pdfRenderer{}
}

func (r *pdfRenderer) Render(ctx context.Context, doc Document) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, doc.RFPName, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(8, "Prepared by "+doc.OrgName, props.Text{Size: 10}),
		text.NewCol(4, doc.GeneratedAt.Format("2 Jan 2006"), props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)
	m.AddRow(4, line.NewCol(12))

	for i, entry := range doc.Entries {
		m.AddRow(10,
			text.NewCol(12, fmt.Sprintf("%d. %s", i+1, entry.Question), props.Text{
				Size:  11,
				Style: fontstyle.Bold,
				Top:   3,
			}),
		)
		answer := entry.Answer
		if answer == "" {
			answer = "No answer drafted."
		}
		m.AddRow(answerRowHeight(answer),
			text.NewCol(12, answer, props.Text{Size: 10, Top: 1}),
		)
		m.AddRow(2, col.New(12))
	}

	if len(doc.Entries) == 0 {
		m.AddRow(10,
			text.NewCol(12, "This RFP contained no questions.", props.Text{Size: 10, Top: 3}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out.GetBytes()), nil
}

// answerRowHeight sizes the row to the answer length. Maroto wraps text but
// needs the row tall enough to hold it.
func answerRowHeight(answer string) float64 {
	const charsPerLine = 95
	lines := len(answer)/charsPerLine + 1
	h := float64(lines * 5)
	if h < 10 {
		return 10
	}
	if h > 240 {
		return 240
	}
	return h
}
