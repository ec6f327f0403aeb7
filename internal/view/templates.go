package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Data        any
}

var (
	ptBR       = message.NewPrinter(language.BrazilianPortuguese)
	phoneDigit = regexp.MustCompile(`(\d{2})(\d{5})(\d{4})`)
)

// FuncMap lists the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatDate":  FormatDate,
		"formatBRL":   FormatBRL,
		"formatPhone": FormatPhone,
		"pageURL":     PageURL,
		"add":         func(a, b int) int { return a + b },
	}
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(FuncMap()).ParseFS(web.Templates,
		"templates/partials/*.html",
		"templates/pages/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template and writes it with status.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Execute renders a template to an arbitrary writer, e.g. for PDF export.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(v float64) string {
	return "R$ " + ptBR.Sprint(number.Decimal(v, number.Scale(2)))
}

// FormatPhone masks the first 11-digit run as (XX) XXXXX-XXXX.
func FormatPhone(phone string) string {
	if phone == "" {
		return "Telefone não informado"
	}
	loc := phoneDigit.FindStringSubmatchIndex(phone)
	if loc == nil {
		return phone
	}
	masked := fmt.Sprintf("(%s) %s-%s", phone[loc[2]:loc[3]], phone[loc[4]:loc[5]], phone[loc[6]:loc[7]])
	return phone[:loc[0]] + masked + phone[loc[1]:]
}

// FormatDate renders a timestamp in pt-BR order, in the server's local zone.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02/01/2006 15:04")
}

// PageURL builds a list URL preserving the search term.
func PageURL(path, term string, page int) string {
	q := url.Values{}
	if term != "" {
		q.Set("q", term)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}
