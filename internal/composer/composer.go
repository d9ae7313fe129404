// Package composer renders outgoing messages: placeholder substitution,
// plain-text-to-HTML conversion, and tracking instrumentation.
package composer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ignite/mailspool/internal/domain"
)

var (
	placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)
	hrefDoubleRe  = regexp.MustCompile(`href="([^"]+)"`)
	hrefSingleRe  = regexp.MustCompile(`href='([^']+)'`)
	closeBodyRe   = regexp.MustCompile(`(?i)</body>`)
)

// CompositionError reports a template that cannot be rendered for a
// recipient. It fails that candidate only, never the batch.
type CompositionError struct {
	Placeholder string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("unknown placeholder {%s}", e.Placeholder)
}

// Composer renders templates into deliverable plain-text and HTML bodies
// with open and click tracking wired to the given base URL.
type Composer struct {
	baseURL string
}

// New creates a composer. baseURL is the absolute prefix for tracking
// endpoints, e.g. "https://mail.example.com".
func New(baseURL string) *Composer {
	return &Composer{baseURL: strings.TrimRight(baseURL, "/")}
}

// Compose renders the template for one recipient. The plain body is the
// personalized template text; the HTML body additionally carries the
// tracking pixel and rewritten click links keyed by the tracking token.
func (c *Composer) Compose(tpl *domain.Template, rcpt *domain.Recipient, token string) (text, html string, err error) {
	text, err = Substitute(tpl.Body, rcpt.PlaceholderValues())
	if err != nil {
		return "", "", err
	}

	html = ToHTML(text)
	html = c.RewriteLinks(html, token)
	html = c.InjectPixel(html, token)
	return text, html, nil
}

// Substitute replaces {name} placeholders with recipient values. Known
// placeholders with empty values substitute as empty strings; an unknown
// placeholder is a CompositionError.
func Substitute(body string, values map[string]string) (string, error) {
	var badName string
	out := placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := values[name]
		if !ok {
			if badName == "" {
				badName = name
			}
			return match
		}
		return value
	})
	if badName != "" {
		return "", &CompositionError{Placeholder: badName}
	}
	return out, nil
}

// ToHTML wraps a plain-text body in a minimal HTML document. Bodies that
// already contain an HTML document marker pass through unchanged.
func ToHTML(body string) string {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<body") {
		return body
	}

	return "<html>\n" +
		`<head><meta http-equiv="Content-Type" content="text/html; charset=utf-8"></head>` + "\n" +
		"<body>\n" +
		strings.ReplaceAll(body, "\n", "<br>\n") + "\n" +
		"</body>\n" +
		"</html>\n"
}

// PixelURL returns the open-tracking endpoint for a token.
func (c *Composer) PixelURL(token string) string {
	return fmt.Sprintf("%s/track/pixel/%s/", c.baseURL, token)
}

// ClickURL returns the click-tracking endpoint for a token and destination.
func (c *Composer) ClickURL(token, originalURL string) string {
	q := url.Values{"url": {originalURL}}
	return fmt.Sprintf("%s/track/click/%s/?%s", c.baseURL, token, q.Encode())
}

// InjectPixel appends an invisible 1x1 image pointing at the pixel
// endpoint, immediately before the closing body tag if present.
func (c *Composer) InjectPixel(html, token string) string {
	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none;" />`,
		c.PixelURL(token))

	if loc := closeBodyRe.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + pixel + html[loc[0]:]
	}
	return html + pixel
}

// RewriteLinks replaces every href value with the click-tracking endpoint
// carrying the original URL. URLs already pointing at a tracking endpoint
// are left alone, so re-rewriting is a no-op.
func (c *Composer) RewriteLinks(html, token string) string {
	rewrite := func(quote byte) func(string) string {
		return func(match string) string {
			original := match[6 : len(match)-1]
			if strings.Contains(original, "/track/pixel") || strings.Contains(original, "/track/click") {
				return match
			}
			return fmt.Sprintf(`href=%c%s%c`, quote, c.ClickURL(token, original), quote)
		}
	}
	html = hrefDoubleRe.ReplaceAllStringFunc(html, rewrite('"'))
	html = hrefSingleRe.ReplaceAllStringFunc(html, rewrite('\''))
	return html
}
