package catalog

// Catalog records referenced by stock items. These are plain lookup
// entities; all stock accounting happens in the stock and exchange
// packages.

// Drug is a medication produced by one pharma company.
type Drug struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Explanation string `json:"explanation"`
	CompanyID   string `json:"company_id"`
}

// Company is a pharma manufacturer.
type Company struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Pharmacy holds stock items and trades on the exchange.
type Pharmacy struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// InsuranceCompany is kept for coverage records; it does not take part
// in stock accounting.
type InsuranceCompany struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
