package campaign

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentpost/agentpost/internal/models"
)

var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// renderVars replaces {{variable}} placeholders with values. Unknown
// placeholders are left intact.
func renderVars(template string, data map[string]any) string {
	return varPattern.ReplaceAllStringFunc(template, func(match string) string {
		varName := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := data[varName]; ok {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}

func contactVars(c *models.Contact) map[string]any {
	return map[string]any{
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"email":     c.Email,
		"phone":     c.Phone,
	}
}

// unsubscribeFooter is appended to every campaign email body.
func unsubscribeFooter(baseURL, token string) string {
	link := baseURL + "/unsubscribe/" + token
	return `<p style="font-size:12px;color:#888;margin-top:24px;">` +
		`If you no longer wish to receive these emails, ` +
		`<a href="` + link + `">unsubscribe here</a>.</p>`
}
