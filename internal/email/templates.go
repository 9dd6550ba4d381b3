package email

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

const receiptTemplate = "receipt"

const receiptHTML = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif">
<h2>Payment received</h2>
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>We received your payment of <b>{{.Amount}} {{.Currency}}</b> for {{.Item}}.</p>
<table>
<tr><td>Reference</td><td>{{.PaymentRef}}</td></tr>
<tr><td>Paid at</td><td>{{.PaidAt}}</td></tr>
{{if .ValidUntil}}<tr><td>Valid until</td><td>{{.ValidUntil}}</td></tr>{{end}}
</table>
</body>
</html>`

// TemplateManager хранит разобранные html-шаблоны писем.
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager создает менеджер со встроенными шаблонами.
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{templates: make(map[string]*template.Template)}
	if err := tm.AddTemplate(receiptTemplate, receiptHTML); err != nil {
		panic(err)
	}
	return tm
}

func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// AddTemplate добавляет или заменяет шаблон.
func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()
	return nil
}

func receiptData(r Receipt) TemplateData {
	data := TemplateData{
		"Name":       r.Name,
		"Amount":     r.Amount.StringFixed(2),
		"Currency":   r.Currency,
		"Item":       r.Item,
		"PaymentRef": r.PaymentRef,
		"PaidAt":     r.PaidAt.Format("2006-01-02 15:04 MST"),
	}
	if r.ValidUntil != nil {
		data["ValidUntil"] = r.ValidUntil.Format("2006-01-02")
	}
	return data
}

func receiptSubject(r Receipt) string {
	if r.Kind == "video" {
		return "Your movie purchase receipt"
	}
	return "Your subscription receipt"
}
