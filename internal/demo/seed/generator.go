package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type Advisor struct {
	AdvisorID string `parquet:"advisor_id"`
	FirstName string `parquet:"first_name"`
	LastName  string `parquet:"last_name"`
	Email     string `parquet:"email,optional"`
}

type Client struct {
	ClientID  string `parquet:"client_id"`
	FirstName string `parquet:"first_name"`
	LastName  string `parquet:"last_name"`
	Age       *int32 `parquet:"age,optional"`
}

type Assignment struct {
	ClientID  string `parquet:"client_id"`
	AdvisorID string `parquet:"advisor_id"`
}

type Portfolio struct {
	PortfolioID   string   `parquet:"portfolio_id"`
	ClientID      string   `parquet:"client_id"`
	PortfolioName string   `parquet:"portfolio_name"`
	TotalValue    *float64 `parquet:"total_value,optional"`
}

type Product struct {
	ProductID       string `parquet:"product_id"`
	ProductName     string `parquet:"product_name"`
	ProductType     string `parquet:"product_type"`
	AssetClass      string `parquet:"asset_class"`
	RiskDescription string `parquet:"risk_description"`
	IsActive        bool   `parquet:"is_active"`
}

type Performance struct {
	ProductID   string   `parquet:"product_id"`
	Y1Return    *float64 `parquet:"y1_return,optional"`
	YTDReturn   float64  `parquet:"ytd_return"`
	SharpeRatio float64  `parquet:"sharpe_ratio"`
}

type Holding struct {
	PortfolioID string  `parquet:"portfolio_id"`
	ClientID    string  `parquet:"client_id"`
	ProductID   string  `parquet:"product_id"`
	Shares      float64 `parquet:"shares"`
	MarketValue float64 `parquet:"market_value"`
}

type Transaction struct {
	TransactionID   string  `parquet:"transaction_id"`
	AccountID       string  `parquet:"account_id"`
	ClientID        string  `parquet:"client_id"`
	PortfolioID     string  `parquet:"portfolio_id"`
	ProductID       string  `parquet:"product_id"`
	TransactionType string  `parquet:"transaction_type"`
	Quantity        float64 `parquet:"quantity"`
	Amount          float64 `parquet:"amount"`
	TransactionDate string  `parquet:"transaction_date"`
}

type Content struct {
	ContentID    string `parquet:"content_id"`
	Title        string `parquet:"title"`
	ContentType  string `parquet:"content_type"`
	Theme        string `parquet:"theme"`
	CreationDate string `parquet:"creation_date"`
}

// Login mirrors the column names of the role table the login endpoint reads.
type Login struct {
	UserID       string `parquet:"UserId"`
	Role         string `parquet:"Role"`
	AwsUserName  string `parquet:"Aws User Name"`
	UserPassword string `parquet:"user_password"`
}

type Dataset struct {
	Advisors     []Advisor
	Clients      []Client
	Assignments  []Assignment
	Portfolios   []Portfolio
	Products     []Product
	Performance  []Performance
	Holdings     []Holding
	Transactions []Transaction
	Content      []Content
	Logins       []Login
}

var (
	firstNames  = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Frances", "Ken", "Radia", "Linus"}
	lastNames   = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Allen", "Thompson", "Perlman", "Torvalds"}
	assetClass  = []string{"Equity", "Fixed Income", "Multi-Asset", "Alternatives", "Cash"}
	productType = []string{"Mutual Fund", "ETF", "Bond", "Structured Note"}
	riskLabels  = []string{"Low", "Moderate", "Balanced", "Growth", "Aggressive"}
	themes      = []string{"Markets", "Retirement", "Sustainability", "Technology", "Tax"}
	formats     = []string{"Article", "Video", "Podcast", "Whitepaper"}
	txTypes     = []string{"BUY", "SELL", "DIVIDEND"}
)

type Generator struct {
	rnd *rand.Rand
	cfg Config
	now func() time.Time
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(cfg.Seed)),
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds a referentially consistent wealth-management dataset.
func (g *Generator) Generate() Dataset {
	var ds Dataset
	today := g.now().Truncate(24 * time.Hour)

	for i := 1; i <= g.cfg.Advisors; i++ {
		first, last := g.name()
		ds.Advisors = append(ds.Advisors, Advisor{
			AdvisorID: fmt.Sprintf("A%03d", i),
			FirstName: first,
			LastName:  last,
			Email:     fmt.Sprintf("%s.%s@advisors.example.com", strings.ToLower(first), strings.ToLower(last)),
		})
		ds.Logins = append(ds.Logins, Login{
			UserID:       fmt.Sprintf("A%03d", i),
			Role:         "advisor",
			AwsUserName:  fmt.Sprintf("advisor%d", i),
			UserPassword: fmt.Sprintf("advisor%d-pass", i),
		})
	}

	for i := 1; i <= g.cfg.Products; i++ {
		ds.Products = append(ds.Products, Product{
			ProductID:       fmt.Sprintf("P%03d", i),
			ProductName:     fmt.Sprintf("%s %s Fund %d", pickOne(g.rnd, riskLabels), pickOne(g.rnd, assetClass), i),
			ProductType:     pickOne(g.rnd, productType),
			AssetClass:      pickOne(g.rnd, assetClass),
			RiskDescription: pickOne(g.rnd, riskLabels),
			IsActive:        g.rnd.Intn(10) > 0,
		})
		perf := Performance{
			ProductID:   fmt.Sprintf("P%03d", i),
			YTDReturn:   round2(-5 + g.rnd.Float64()*20),
			SharpeRatio: round2(g.rnd.Float64() * 2),
		}
		if g.rnd.Intn(8) > 0 {
			y1 := round2(-10 + g.rnd.Float64()*35)
			perf.Y1Return = &y1
		}
		ds.Performance = append(ds.Performance, perf)
	}

	txSeq := 0
	for i := 1; i <= g.cfg.Clients; i++ {
		clientID := fmt.Sprintf("C%04d", i)
		first, last := g.name()
		client := Client{ClientID: clientID, FirstName: first, LastName: last}
		if g.rnd.Intn(10) > 0 {
			age := int32(25 + g.rnd.Intn(55))
			client.Age = &age
		}
		ds.Clients = append(ds.Clients, client)
		ds.Assignments = append(ds.Assignments, Assignment{
			ClientID:  clientID,
			AdvisorID: fmt.Sprintf("A%03d", 1+g.rnd.Intn(g.cfg.Advisors)),
		})
		ds.Logins = append(ds.Logins, Login{
			UserID:       clientID,
			Role:         "client",
			AwsUserName:  fmt.Sprintf("client%d", i),
			UserPassword: fmt.Sprintf("client%d-pass", i),
		})

		portfolios := 1 + g.rnd.Intn(2)
		for p := 1; p <= portfolios; p++ {
			portfolioID := fmt.Sprintf("%s-P%d", clientID, p)
			var total float64
			picked := g.rnd.Perm(len(ds.Products))[:1+g.rnd.Intn(min(4, len(ds.Products)))]
			for _, idx := range picked {
				product := ds.Products[idx]
				shares := round2(1 + g.rnd.Float64()*500)
				value := round2(shares * (10 + g.rnd.Float64()*190))
				total += value
				ds.Holdings = append(ds.Holdings, Holding{
					PortfolioID: portfolioID,
					ClientID:    clientID,
					ProductID:   product.ProductID,
					Shares:      shares,
					MarketValue: value,
				})
				txSeq++
				ds.Transactions = append(ds.Transactions, Transaction{
					TransactionID:   fmt.Sprintf("T%06d", txSeq),
					AccountID:       fmt.Sprintf("ACC-%s", portfolioID),
					ClientID:        clientID,
					PortfolioID:     portfolioID,
					ProductID:       product.ProductID,
					TransactionType: pickOne(g.rnd, txTypes),
					Quantity:        shares,
					Amount:          value,
					TransactionDate: today.AddDate(0, 0, -g.rnd.Intn(365)).Format(time.DateOnly),
				})
			}
			portfolio := Portfolio{
				PortfolioID:   portfolioID,
				ClientID:      clientID,
				PortfolioName: fmt.Sprintf("%s %s", pickOne(g.rnd, riskLabels), pickOne(g.rnd, []string{"Core", "Income", "Legacy", "Education"})),
			}
			if total > 0 {
				rounded := round2(total)
				portfolio.TotalValue = &rounded
			}
			ds.Portfolios = append(ds.Portfolios, portfolio)
		}
	}

	for i := 1; i <= g.cfg.Content; i++ {
		theme := pickOne(g.rnd, themes)
		ds.Content = append(ds.Content, Content{
			ContentID:    fmt.Sprintf("TL%04d", i),
			Title:        fmt.Sprintf("%s outlook #%d", theme, i),
			ContentType:  pickOne(g.rnd, formats),
			Theme:        theme,
			CreationDate: today.AddDate(0, 0, -g.rnd.Intn(720)).Format(time.DateOnly),
		})
	}
	return ds
}

func (g *Generator) name() (string, string) {
	return pickOne(g.rnd, firstNames), pickOne(g.rnd, lastNames)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
