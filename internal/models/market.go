package models

import (
	"fmt"
	"math"
	"strings"
)

// IndexSnapshot is the current market index value and its change from the prior session, as shown on
// the index card.
type IndexSnapshot struct {
	DisplayValue      string
	ChangePercentText string
	IsPositive        bool
}

// InitialIndex is what the index card shows before the first successful fetch.
var InitialIndex = IndexSnapshot{
	DisplayValue:      "로딩 중...",
	ChangePercentText: "0.00%",
	IsPositive:        true,
}

// NewIndexSnapshot builds a snapshot from the provider's text fields. The change text is trimmed and
// the snapshot is positive only when the trimmed text starts with '+'.
func NewIndexSnapshot(value, change string) IndexSnapshot {
	change = strings.TrimSpace(change)
	return IndexSnapshot{
		DisplayValue:      value,
		ChangePercentText: change,
		IsPositive:        strings.HasPrefix(change, "+"),
	}
}

// RankedStock is one entry of the top-movers ranking.
type RankedStock struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	ChangeRate float64 `json:"changeRate"`
}

// Up reports whether the stock moved up.
func (s RankedStock) Up() bool {
	return s.ChangeRate > 0
}

// AbsChange formats the magnitude of the change rate with two decimals.
func (s RankedStock) AbsChange() string {
	return fmt.Sprintf("%.2f", math.Abs(s.ChangeRate))
}

var medals = []string{"🥇", "🥈", "🥉"}

// Medal returns the medal shown next to the stock at the given list position, or an empty string past
// the podium.
func Medal(position int) string {
	if position < 0 || position >= len(medals) {
		return ""
	}
	return medals[position]
}

// NewsItem is a single decoded headline of a company's news feed.
type NewsItem struct {
	Title   string
	Link    string
	PubDate string
}

// CompanyNews groups news items by company name.
type CompanyNews map[string][]NewsItem

// SecurityListing is an entry of the reference security list used by the picker.
type SecurityListing struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Query is the chat input prefilled when the security is picked.
func (s SecurityListing) Query() string {
	return fmt.Sprintf("%s(%s)에 대해 알려주세요.", s.Name, s.Code)
}

// DefaultCompanies is the fixed set of companies whose news is shown.
var DefaultCompanies = []string{"삼성전자", "SK하이닉스", "카카오", "네이버", "LG전자", "현대차"}

var companyImages = map[string]string{
	"현대차":    "hyundai",
	"카카오":    "kakao",
	"LG전자":   "lg",
	"네이버":    "naver",
	"삼성전자":   "samsung",
	"SK하이닉스": "sk",
}

// CompanyImage returns the logo file name, without extension, of the company.
func CompanyImage(company string) string {
	if name, ok := companyImages[company]; ok {
		return name
	}
	return "default"
}
