package models

import "github.com/shopspring/decimal"

// Synthetic record codes appended by the aggregator.
const (
	CodeReceivables = "CXC"
	CodeGrossProfit = "GB"
)

// AccountRecord is one financial line item of a tax declaration.
type AccountRecord struct {
	Description string          `json:"description"`
	Code        string          `json:"code"`
	Value       decimal.Decimal `json:"value"`
	Page        int             `json:"page,omitempty"`
	Line        int             `json:"line,omitempty"`
	Synthetic   bool            `json:"synthetic,omitempty"`
}

// TargetAccount is an entry of the reference table the selector extracts.
// Key names the figure the account feeds (e.g. "current_assets"); it is
// informational only, matching uses Code and Fragment.
type TargetAccount struct {
	Code     string `yaml:"code" json:"code"`
	Fragment string `yaml:"fragment" json:"fragment"`
	Key      string `yaml:"key,omitempty" json:"key,omitempty"`
}

// DebugLine captures what the parser and selector did with each input line.
type DebugLine struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Result string `json:"result"` // "selected", "rejected", "unparsed"
	Code   string `json:"code,omitempty"`
}

// Dataset holds the extracted records of one document in document order,
// followed by the synthetic records.
type Dataset struct {
	Records    []AccountRecord `json:"records"`
	Missing    []string        `json:"missing,omitempty"` // target codes never found
	DebugLines []DebugLine     `json:"debugLines,omitempty"`
}

// Sum adds the values of every record whose code is in codes. Absent codes
// contribute zero.
func (d *Dataset) Sum(codes ...string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.Records {
		for _, c := range codes {
			if r.Code == c {
				total = total.Add(r.Value)
				break
			}
		}
	}
	return total
}

// Has reports whether any record carries the given code.
func (d *Dataset) Has(code string) bool {
	for _, r := range d.Records {
		if r.Code == code {
			return true
		}
	}
	return false
}

// Extracted returns the records read from the document, without synthetic ones.
func (d *Dataset) Extracted() []AccountRecord {
	var out []AccountRecord
	for _, r := range d.Records {
		if !r.Synthetic {
			out = append(out, r)
		}
	}
	return out
}
