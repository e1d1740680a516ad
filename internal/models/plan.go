package models

// Plan is a pricing tier offered in the plan modal.
type Plan struct {
	Name     string
	Price    string
	Features []string
}

// Plans lists the tiers in display order.
var Plans = []Plan{
	{Name: "기본", Price: "무료", Features: []string{"기본 KOSPI 정보", "제한된 AI 채팅"}},
	{Name: "프로", Price: "₩9,900/월", Features: []string{"실시간 KOSPI 데이터", "무제한 AI 채팅", "고급 분석 도구"}},
	{Name: "엔터프라이즈", Price: "맞춤 가격", Features: []string{"모든 프로 기능", "전용 고객 지원", "맞춤형 솔루션"}},
}
