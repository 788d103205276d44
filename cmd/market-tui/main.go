// market-tui 实时查看 marketd 的在售挂单与成交。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/api"
	"github.com/openfire/firemarket/internal/client"
	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/pkg/config"
	"github.com/openfire/firemarket/pkg/logger"
)

const reconnectDelay = 3 * time.Second

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("2")) // 绿色

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// ---------- 消息 ----------

type snapshotMsg struct {
	info     *api.InfoResponse
	listings []domain.Listing
	receipts []domain.SaleReceipt
	feed     *feed
}

type eventMsg events.RawEnvelope

type disconnectedMsg struct{ err error }

type reconnectMsg struct{}

// feed /ws/events 连接，读到的事件转发到 ch
type feed struct {
	conn *websocket.Conn
	ch   chan events.RawEnvelope
	err  error
}

func dialFeed(ctx context.Context, baseURL string) (*feed, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	f := &feed{conn: conn, ch: make(chan events.RawEnvelope, 64)}
	go f.read()
	return f, nil
}

func (f *feed) read() {
	defer close(f.ch)
	for {
		var env events.RawEnvelope
		if err := f.conn.ReadJSON(&env); err != nil {
			f.err = err
			return
		}
		f.ch <- env
	}
}

func (f *feed) next() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-f.ch
		if !ok {
			return disconnectedMsg{err: f.err}
		}
		return eventMsg(env)
	}
}

// ---------- model ----------

type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *client.Client

	info  *api.InfoResponse
	board *board
	feed  *feed

	connected bool
	err       error
	updatedAt time.Time
}

func initialModel(c *client.Client) model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{ctx: ctx, cancel: cancel, client: c, board: newBoard()}
}

func (m model) Init() tea.Cmd {
	return connectCmd(m.ctx, m.client)
}

// connectCmd 先订阅事件流再拉快照，避免两者之间的事件丢失
func connectCmd(ctx context.Context, c *client.Client) tea.Cmd {
	return func() tea.Msg {
		f, err := dialFeed(ctx, c.BaseURL())
		if err != nil {
			return disconnectedMsg{err: err}
		}
		info, err := c.Info(ctx)
		if err != nil {
			f.conn.Close()
			return disconnectedMsg{err: err}
		}
		listings, err := c.Listings(ctx, true)
		if err != nil {
			f.conn.Close()
			return disconnectedMsg{err: err}
		}
		receipts, err := c.Receipts(ctx, nil)
		if err != nil {
			f.conn.Close()
			return disconnectedMsg{err: err}
		}
		return snapshotMsg{info: info, listings: listings, receipts: receipts, feed: f}
	}
}

func reconnectCmd() tea.Cmd {
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			if m.feed != nil {
				m.feed.conn.Close()
			}
			return m, tea.Quit
		case "r":
			if m.feed != nil {
				m.feed.conn.Close()
			}
			return m, nil
		}

	case snapshotMsg:
		m.info = msg.info
		m.board.reset(msg.listings, msg.receipts)
		m.feed = msg.feed
		m.connected = true
		m.err = nil
		m.updatedAt = time.Now()
		return m, m.feed.next()

	case eventMsg:
		changed, err := m.board.apply(events.RawEnvelope(msg))
		if err != nil {
			logrus.Warnf("解析事件失败: %v", err)
		}
		if changed {
			m.updatedAt = time.Now()
		}
		return m, m.feed.next()

	case disconnectedMsg:
		m.connected = false
		m.feed = nil
		m.err = msg.err
		if msg.err != nil {
			logrus.Warnf("事件流断开: %v", msg.err)
		}
		return m, reconnectCmd()

	case reconnectMsg:
		return m, connectCmd(m.ctx, m.client)
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	status := errStyle.Render("● 未连接")
	if m.connected {
		status = priceStyle.Render("● 已连接")
	}
	s.WriteString(headerStyle.Render(" firemarket ") + "  " + status + "  " + dimStyle.Render(m.client.BaseURL()))
	s.WriteString("\n\n")

	decimals := int32(0)
	if m.info != nil {
		g := m.info.Genesis
		decimals = int32(g.TokenDecimals)
		s.WriteString(fmt.Sprintf("代币 %s (%s)   佣金 %s%%   下一资产 #%d\n",
			g.TokenName, g.TokenSymbol, m.info.CommissionPercent, m.info.NextAssetID))
		s.WriteString(fmt.Sprintf("累计成交 %s   累计佣金 %s\n\n",
			policy.FormatAmount(m.board.volume, decimals), policy.FormatAmount(m.board.fees, decimals)))
	}

	left := borderStyle.Render(titleStyle.Render("在售") + "\n" + renderListings(m.board.active(), decimals))
	right := borderStyle.Render(titleStyle.Render("最近成交") + "\n" + renderSales(m.board.sales, decimals))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(errStyle.Render(fmt.Sprintf("错误: %v（%s 后重连）", m.err, reconnectDelay)))
		s.WriteString("\n")
	}
	if !m.updatedAt.IsZero() {
		s.WriteString(dimStyle.Render("更新于 " + m.updatedAt.Format("15:04:05")))
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render("q 退出  r 重连"))
	return s.String()
}

func renderListings(ls []domain.Listing, decimals int32) string {
	if len(ls) == 0 {
		return dimStyle.Render("(无)")
	}
	var b strings.Builder
	for _, l := range ls {
		b.WriteString(fmt.Sprintf("#%-5d %s  %s\n", l.AssetID, shortAddr(l.Seller),
			priceStyle.Render(policy.FormatAmount(l.SellingPrice, decimals))))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderSales(rs []domain.SaleReceipt, decimals int32) string {
	if len(rs) == 0 {
		return dimStyle.Render("(无)")
	}
	var b strings.Builder
	for _, r := range rs {
		b.WriteString(fmt.Sprintf("%s #%-5d %s → %s  %s\n",
			r.SettledAt.Local().Format("15:04:05"), r.AssetID,
			shortAddr(r.Seller), shortAddr(r.Buyer),
			priceStyle.Render(policy.FormatAmount(r.Price, decimals))))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func shortAddr(a domain.Account) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	server := flag.String("server", "", "marketd 地址，覆盖配置")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.ServerURL = *server
	}

	// 日志只写文件，不干扰终端界面
	if err := logger.Init(logger.Config{
		Level:      "info",
		OutputFile: filepath.Join("logs", "market-tui.log"),
		MaxSize:    10,
		MaxBackups: 1,
		Quiet:      true,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client.New(cfg.ServerURL)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
