package language

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/pkg/httpclient"
	"EdgeRAG/backend/go/pkg/logger"
)

func newTestDetector(endpoint string) *AzureDetector {
	client := httpclient.New(2*time.Second, nil)
	return NewAzureDetector(endpoint, "test-key", client, nil, time.Minute, logger.New("language_test"))
}

func languageServer(t *testing.T, iso string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/text/analytics/v3.1/languages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{"detectedLanguage":{"iso6391Name":"` + iso + `"}}]}`))
	}))
}

func TestDetectEnglish(t *testing.T) {
	srv := languageServer(t, "en", nil)
	defer srv.Close()

	lang, err := newTestDetector(srv.URL).Detect(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != models.LanguageEnglish {
		t.Errorf("lang = %s, want english", lang)
	}
}

func TestDetectArabic(t *testing.T) {
	srv := languageServer(t, "ar", nil)
	defer srv.Close()

	lang, err := newTestDetector(srv.URL).Detect(context.Background(), "مرحبا بالعالم")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != models.LanguageArabic {
		t.Errorf("lang = %s, want arabic", lang)
	}
}

func TestDetectOtherLanguageIsUnknown(t *testing.T) {
	srv := languageServer(t, "fr", nil)
	defer srv.Close()

	lang, err := newTestDetector(srv.URL).Detect(context.Background(), "bonjour le monde")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != models.LanguageUnknown {
		t.Errorf("lang = %s, want unknown", lang)
	}
}

func TestDetectCachesResults(t *testing.T) {
	var hits atomic.Int32
	srv := languageServer(t, "en", &hits)
	defer srv.Close()

	d := newTestDetector(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := d.Detect(context.Background(), "same text every time"); err != nil {
			t.Fatalf("Detect: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("remote called %d times, want 1", hits.Load())
	}
}

func TestDetectFallsBackToHeuristicOnRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDetector(srv.URL)
	lang, err := d.Detect(context.Background(), "الذكاء الاصطناعي هو محاكاة الذكاء البشري")
	if err == nil {
		t.Fatal("expected degradation error")
	}
	if lang != models.LanguageArabic {
		t.Errorf("heuristic fallback lang = %s, want arabic", lang)
	}

	lang, err = d.Detect(context.Background(), "plain english sentence")
	if err == nil {
		t.Fatal("expected degradation error")
	}
	if lang != models.LanguageEnglish {
		t.Errorf("heuristic fallback lang = %s, want english", lang)
	}
}

func TestDetectTruncatesSampleOnRuneBoundary(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Documents []struct {
				Text string `json:"text"`
			} `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Documents) == 1 {
			gotText = req.Documents[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{"detectedLanguage":{"iso6391Name":"ar"}}]}`))
	}))
	defer srv.Close()

	// 600 个双字节的阿拉伯字符:按字节截断会把第 500 字节处的字符切开。
	long := strings.Repeat("م", 600)
	if _, err := newTestDetector(srv.URL).Detect(context.Background(), long); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !utf8.ValidString(gotText) {
		t.Fatal("remote sample is not valid UTF-8")
	}
	if n := len([]rune(gotText)); n != 500 {
		t.Errorf("sample length = %d runes, want 500", n)
	}
}

func TestDetectBlankText(t *testing.T) {
	var hits atomic.Int32
	srv := languageServer(t, "en", &hits)
	defer srv.Close()

	lang, err := newTestDetector(srv.URL).Detect(context.Background(), "   \n\t")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != models.LanguageUnknown {
		t.Errorf("lang = %s, want unknown", lang)
	}
	if hits.Load() != 0 {
		t.Errorf("blank text should not hit the remote service")
	}
}

func TestHeuristicDetect(t *testing.T) {
	cases := []struct {
		text string
		want models.Language
	}{
		{"", models.LanguageUnknown},
		{"hello world", models.LanguageEnglish},
		{"مرحبا بالعالم", models.LanguageArabic},
		// 阿拉伯字符占比刚好不过半时按英语处理。
		{"ab مر", models.LanguageEnglish},
	}
	for _, c := range cases {
		if got := HeuristicDetect(c.text); got != c.want {
			t.Errorf("HeuristicDetect(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestISO6391(t *testing.T) {
	if ISO6391(models.LanguageArabic) != "ar" {
		t.Error("arabic should map to ar")
	}
	if ISO6391(models.LanguageEnglish) != "en" {
		t.Error("english should map to en")
	}
	if ISO6391(models.LanguageUnknown) != "en" {
		t.Error("unknown should map to en")
	}
}
