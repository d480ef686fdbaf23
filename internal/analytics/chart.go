package analytics

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

const (
	chartWidth   = 720
	chartHeight  = 240
	chartPadding = 28.0
	chartTicks   = 5

	colorCurrent  = "#0ea5e9"
	colorPrevious = "#f97316"
	colorAxis     = "#475569"
	colorGrid     = "#cbd5f5"
)

// RenderSVG draws the graph as grouped bars, current year beside previous.
func RenderSVG(g SalesGraph) (string, error) {
	if len(g.Labels) == 0 || len(g.Current) != len(g.Labels) || len(g.Previous) != len(g.Labels) {
		return "", fmt.Errorf("analytics: graph series do not match labels")
	}
	innerW := chartWidth - 2*chartPadding
	innerH := chartHeight - 2*chartPadding

	maxVal := 0.0
	for i := range g.Labels {
		maxVal = math.Max(maxVal, math.Max(g.Current[i], g.Previous[i]))
	}
	minVal := 0.0
	for i := range g.Labels {
		minVal = math.Min(minVal, math.Min(g.Current[i], g.Previous[i]))
	}
	if maxVal-minVal < 1e-9 {
		maxVal = minVal + 1
	}
	scale := innerH / (maxVal - minVal)
	zeroY := chartPadding + innerH + minVal*scale
	groupW := innerW / float64(len(g.Labels))
	barW := groupW / 3

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="sales-title">`, chartWidth, chartHeight)
	fmt.Fprintf(&b, `<title id="sales-title">%s</title>`, template.HTMLEscapeString("Sales "+g.FinancialYear+" vs "+g.PreviousYear))

	for i := 0; i <= chartTicks; i++ {
		ratio := float64(i) / chartTicks
		y := chartPadding + innerH - ratio*innerH
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4"></line>`,
			chartPadding, y, chartPadding+innerW, y, colorGrid)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`,
			chartPadding-4, y+4, colorAxis, formatTick(minVal+(maxVal-minVal)*ratio))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s"></line>`,
		chartPadding, zeroY, chartPadding+innerW, zeroY, colorAxis)

	for i, label := range g.Labels {
		x := chartPadding + float64(i)*groupW
		writeBar(&b, x+barW*0.3, g.Current[i], scale, zeroY, barW, colorCurrent, g.FinancialYear+" "+label)
		writeBar(&b, x+barW*1.4, g.Previous[i], scale, zeroY, barW, colorPrevious, g.PreviousYear+" "+label)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
			x+groupW/2, chartPadding+innerH+14, colorAxis, template.HTMLEscapeString(label))
	}

	legend := [][2]string{{colorCurrent, g.FinancialYear}, {colorPrevious, g.PreviousYear}}
	for i, item := range legend {
		lx := chartPadding + float64(i)*90
		fmt.Fprintf(&b, `<rect x="%.2f" y="6" width="10" height="10" fill="%s"></rect>`, lx, item[0])
		fmt.Fprintf(&b, `<text x="%.2f" y="15" fill="%s" font-size="10">%s</text>`, lx+14, colorAxis, template.HTMLEscapeString(item[1]))
	}
	b.WriteString("</svg>")
	return b.String(), nil
}

func writeBar(b *strings.Builder, x, value, scale, zeroY, width float64, color, label string) {
	h := math.Abs(value) * scale
	y := zeroY - h
	if value < 0 {
		y = zeroY
	}
	fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s"></rect>`,
		x, y, width, h, color, template.HTMLEscapeString(label))
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e7:
		return fmt.Sprintf("%.1fCr", v/1e7)
	case abs >= 1e5:
		return fmt.Sprintf("%.1fL", v/1e5)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}
