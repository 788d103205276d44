package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/openfire/firemarket/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Width(16)

	onSaleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // 绿色
	offSaleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "(empty)")
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())
}

// printKV 成对打印 key/value
func printKV(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Println(keyStyle.Render(pairs[i]) + pairs[i+1])
	}
}

func short(a domain.Account) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func printAssets(assets []domain.Asset) {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			fmt.Sprint(a.ID), short(a.Creator), short(a.Owner), fmt.Sprintf("%d%%", a.RoyaltyRate), a.TokenURI,
		})
	}
	printTable([]string{"ID", "CREATOR", "OWNER", "ROYALTY", "TOKEN URI"}, rows)
}

func printListings(ls []domain.Listing) {
	rows := make([][]string, 0, len(ls))
	for _, l := range ls {
		status := offSaleStyle.Render("off")
		if l.OnSale {
			status = onSaleStyle.Render("on sale")
		}
		rows = append(rows, []string{fmt.Sprint(l.AssetID), short(l.Seller), fmt.Sprint(l.SellingPrice), status, l.TokenURI})
	}
	printTable([]string{"ASSET", "SELLER", "PRICE", "STATUS", "TOKEN URI"}, rows)
}

func printReceipts(rs []domain.SaleReceipt) {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			fmt.Sprint(r.Seq),
			fmt.Sprint(r.AssetID),
			short(r.Seller),
			short(r.Buyer),
			fmt.Sprint(r.Price),
			fmt.Sprint(r.Commission),
			fmt.Sprint(r.Royalty),
			fmt.Sprint(r.SellerProceeds),
			r.SettledAt.Local().Format("01-02 15:04:05"),
		})
	}
	printTable([]string{"#", "ASSET", "SELLER", "BUYER", "PRICE", "COMMISSION", "ROYALTY", "PROCEEDS", "TIME"}, rows)
}
