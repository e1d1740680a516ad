package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kdb-labs/kospi-chat/internal/client"
)

func newClient(t *testing.T, h http.Handler) client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	seoul := time.FixedZone("KST", 9*60*60)
	return client.New(client.Config{
		ProxyURL:  srv.URL,
		MarketURL: srv.URL,
		ChatURL:   srv.URL,
	}, srv.Client(), seoul, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantErr      bool
		wantChange   string
		wantPositive bool
	}{
		{
			name:         "Positive",
			status:       http.StatusOK,
			body:         `{"지수정보":"2,650.12","지수등락율":" +1.23% ","R_CODE":"0000"}`,
			wantChange:   "+1.23%",
			wantPositive: true,
		},
		{
			name:         "Negative",
			status:       http.StatusOK,
			body:         `{"지수정보":"2,600.00","지수등락율":"-0.50%"}`,
			wantChange:   "-0.50%",
			wantPositive: false,
		},
		{
			name:    "Server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"서버 오류"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/kospi-index" {
					t.Errorf("path = %q, want /api/kospi-index", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			snap, err := c.Index(context.Background())
			if tt.wantErr {
				if !errors.Is(err, client.ErrStatus) {
					t.Fatalf("Index() error = %v, want ErrStatus", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Index() error = %v", err)
			}
			if snap.ChangePercentText != tt.wantChange || snap.IsPositive != tt.wantPositive {
				t.Errorf("Index() = %+v, want change %q positive %v", snap, tt.wantChange, tt.wantPositive)
			}
		})
	}
}

func TestNews(t *testing.T) {
	type item struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		PubDate string `json:"pubDate"`
	}
	items := []item{
		{Title: "Samsung&nbsp;&lt;b&gt;Electronics&lt;/b&gt;", Link: "https://n/1", PubDate: "Mon, 05 Aug 2024 23:30:00 +0000"},
		{Title: "<b>삼성전자</b> 실적 발표", Link: "https://n/2", PubDate: "Mon, 05 Aug 2024 10:00:00 +0900"},
		{Title: "third", Link: "https://n/3", PubDate: "garbage"},
		{Title: "fourth", Link: "https://n/4"},
		{Title: "fifth", Link: "https://n/5"},
	}

	var gotQuery string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))

	news, err := c.News(context.Background(), "삼성전자")
	if err != nil {
		t.Fatalf("News() error = %v", err)
	}
	if gotQuery != "삼성전자" {
		t.Errorf("query = %q, want 삼성전자", gotQuery)
	}
	if len(news) != client.MaxNewsItems {
		t.Fatalf("len(News()) = %d, want %d", len(news), client.MaxNewsItems)
	}

	want := []struct{ title, link, date string }{
		{"Samsung Electronics", "https://n/1", "2024. 8. 6."},
		{"삼성전자 실적 발표", "https://n/2", "2024. 8. 5."},
		{"third", "https://n/3", "garbage"},
	}
	for i, w := range want {
		if news[i].Title != w.title {
			t.Errorf("news[%d].Title = %q, want %q", i, news[i].Title, w.title)
		}
		if news[i].Link != w.link {
			t.Errorf("news[%d].Link = %q, want %q", i, news[i].Link, w.link)
		}
		if news[i].PubDate != w.date {
			t.Errorf("news[%d].PubDate = %q, want %q", i, news[i].PubDate, w.date)
		}
	}
}

func TestNewsFailure(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"x","items":[]}`)
	}))

	if _, err := c.News(context.Background(), "카카오"); !errors.Is(err, client.ErrStatus) {
		t.Fatalf("News() error = %v, want ErrStatus", err)
	}
}

func TestMarketBackend(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/top-stocks":
			_, _ = io.WriteString(w, `[{"rank":1,"name":"A","code":"000001","changeRate":29.9},`+
				`{"rank":2,"name":"B","code":"000002","changeRate":-1.5}]`)
		case "/api/kospi-stocks":
			_, _ = io.WriteString(w, `[{"code":"005930","name":"삼성전자"}]`)
		default:
			http.NotFound(w, r)
		}
	}))

	movers, err := c.TopMovers(context.Background())
	if err != nil {
		t.Fatalf("TopMovers() error = %v", err)
	}
	if len(movers) != 2 || movers[0].Rank != 1 || movers[1].ChangeRate != -1.5 {
		t.Errorf("TopMovers() = %+v", movers)
	}

	listings, err := c.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(listings) != 1 || listings[0].Name != "삼성전자" {
		t.Errorf("Listings() = %+v", listings)
	}
}

func TestAsk(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantAnswer string
		wantErr    bool
	}{
		{name: "Answer", status: http.StatusOK, body: `{"answer":"좋습니다"}`, wantAnswer: "좋습니다"},
		{name: "Backend failure", status: http.StatusInternalServerError, body: `{"detail":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if r.Method != http.MethodPost || r.URL.Path != "/chat" {
					t.Errorf("request = %s %s, want POST /chat", r.Method, r.URL.Path)
				}
				var req struct {
					Question string `json:"question"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question != "질문" {
					t.Errorf("question = %q (%v), want 질문", req.Question, err)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			answer, err := c.Ask(context.Background(), "질문")
			if calls != 1 {
				t.Errorf("calls = %d, want exactly 1", calls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("Ask() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if answer != tt.wantAnswer {
				t.Errorf("Ask() = %q, want %q", answer, tt.wantAnswer)
			}
		})
	}
}

func TestDecodeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Samsung&nbsp;&lt;b&gt;Electronics&lt;/b&gt;", "Samsung Electronics"},
		{"<b>현대차</b> &quot;신차&quot; 출시", `현대차 "신차" 출시`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := client.DecodeTitle(tt.in); got != tt.want {
			t.Errorf("DecodeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
