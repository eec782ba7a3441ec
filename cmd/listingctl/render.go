package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderBatch(out io.Writer, result models.BatchResult) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Target", "Region", "Size", "Sale", "Sale min", "Jeonse", "Jeonse min", "Monthly", "Status"})
	for _, e := range result {
		name := e.DisplayName
		if e.IsOwned {
			name += " *"
		}
		t.AppendRow(table.Row{
			name,
			e.Region,
			e.SizeBracket,
			e.Sale.Count,
			formatPrice(e.Sale.MinPrice),
			e.Jeonse.Count,
			formatPrice(e.Jeonse.MinPrice),
			e.Monthly.Count,
			status(e.EntitySummary),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", fmt.Sprintf("%d entries", len(result))})
	t.Render()
}

func renderSummary(out io.Writer, s models.EntitySummary) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("%s (%s) %d㎡: %s", s.DisplayName, orDash(s.Identifier), s.SizeBracket, status(s)))
	t.AppendHeader(table.Row{"Trade", "Count", "Min", "Max", "Avg"})
	for _, row := range []struct {
		name  models.TradeCategory
		stats models.ListingStats
	}{
		{models.TradeSale, s.Sale},
		{models.TradeJeonse, s.Jeonse},
		{models.TradeMonthly, s.Monthly},
	} {
		t.AppendRow(table.Row{row.name, row.stats.Count, formatPrice(row.stats.MinPrice), formatPrice(row.stats.MaxPrice), formatPrice(row.stats.AvgPrice)})
	}
	t.Render()
}

func renderSample(out io.Writer, stats models.ListingStats) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("%d listings, min %s, max %s, avg %s",
		stats.Count, formatPrice(stats.MinPrice), formatPrice(stats.MaxPrice), formatPrice(stats.AvgPrice)))
	t.AppendHeader(table.Row{"Article", "Price", "Rent", "Area", "Floor", "Direction", "Realtor"})
	for _, r := range stats.Sample {
		t.AppendRow(table.Row{r.ID, formatPrice(r.Price), formatPrice(r.RentPrice), r.AreaActual, r.FloorInfo, r.Direction, r.Realtor})
	}
	t.Render()
}

func renderInfo(out io.Writer, info models.EntityInfo) {
	t := newTable(out)
	t.AppendRows([]table.Row{
		{"Name", orDash(info.Name)},
		{"Address", orDash(info.Address)},
		{"Units", info.UnitCount},
	})
	t.Render()
}

func status(s models.EntitySummary) string {
	if s.OK {
		return "ok"
	}
	return "failed: " + s.Error
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatPrice renders won in the portal's 억/만 notation, e.g. "9억 5,000".
func formatPrice(won int64) string {
	if won <= 0 {
		return "-"
	}
	eok := won / 100_000_000
	man := (won % 100_000_000) / 10_000
	switch {
	case eok > 0 && man > 0:
		return fmt.Sprintf("%d억 %s", eok, groupThousands(man))
	case eok > 0:
		return fmt.Sprintf("%d억", eok)
	default:
		return groupThousands(man) + "만"
	}
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
