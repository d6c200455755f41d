package api

type advisorView struct {
	AdvisorID string  `json:"advisor_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email"`
}

type clientView struct {
	ClientID  string `json:"client_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       *int64 `json:"age"`
}

type portfolioView struct {
	PortfolioID   string   `json:"portfolio_id"`
	ClientID      string   `json:"client_id"`
	PortfolioName string   `json:"portfolio_name"`
	TotalValue    *float64 `json:"total_value"`
}

type holdingView struct {
	ProductID   string  `json:"product_id"`
	Shares      float64 `json:"shares"`
	MarketValue float64 `json:"market_value"`
	ProductName *string `json:"product_name"`
}

type transactionView struct {
	TransactionID   string  `json:"transaction_id"`
	AccountID       string  `json:"account_id"`
	ProductID       string  `json:"product_id"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	Amount          float64 `json:"amount"`
	TransactionDate string  `json:"transaction_date"`
}

type contentView struct {
	ContentID    string `json:"content_id"`
	Title        string `json:"title"`
	ContentType  string `json:"content_type"`
	Theme        string `json:"theme"`
	CreationDate string `json:"creation_date"`
}

func decodeAdvisor(d *rowDecoder) advisorView {
	return advisorView{
		AdvisorID: d.str("advisor_id"),
		FirstName: d.str("first_name"),
		LastName:  d.str("last_name"),
		Email:     d.optStr("email"),
	}
}

func decodeClient(d *rowDecoder) clientView {
	return clientView{
		ClientID:  d.str("client_id"),
		FirstName: d.str("first_name"),
		LastName:  d.str("last_name"),
		Age:       d.optInt("age"),
	}
}

func decodePortfolio(d *rowDecoder) portfolioView {
	return portfolioView{
		PortfolioID:   d.str("portfolio_id"),
		ClientID:      d.str("client_id"),
		PortfolioName: d.str("portfolio_name"),
		TotalValue:    d.optFloat("total_value"),
	}
}

func decodeHolding(d *rowDecoder) holdingView {
	return holdingView{
		ProductID:   d.str("product_id"),
		Shares:      d.float("shares"),
		MarketValue: d.float("market_value"),
		ProductName: d.optStr("product_name"),
	}
}

func decodeTransaction(d *rowDecoder) transactionView {
	return transactionView{
		TransactionID:   d.str("transaction_id"),
		AccountID:       d.str("account_id"),
		ProductID:       d.str("product_id"),
		TransactionType: d.str("transaction_type"),
		Quantity:        d.float("quantity"),
		Amount:          d.float("amount"),
		TransactionDate: d.str("transaction_date"),
	}
}

func decodeContent(d *rowDecoder) contentView {
	return contentView{
		ContentID:    d.str("content_id"),
		Title:        d.str("title"),
		ContentType:  d.str("content_type"),
		Theme:        d.str("theme"),
		CreationDate: d.str("creation_date"),
	}
}
