package composer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailspool/internal/domain"
)

const baseURL = "https://mail.example.com"

func testRecipient() *domain.Recipient {
	return &domain.Recipient{
		Email:      "john@example.com",
		FirstName:  "John",
		LastName:   "Doe",
		Company:    "Acme",
		FreeField1: "gold",
	}
}

func TestSubstitute(t *testing.T) {
	out, err := Substitute("Hello {first_name}!", testRecipient().PlaceholderValues())
	require.NoError(t, err)
	assert.Equal(t, "Hello John!", out)
}

func TestSubstituteMissingFieldIsEmpty(t *testing.T) {
	out, err := Substitute("Code: {free_field2}.", testRecipient().PlaceholderValues())
	require.NoError(t, err)
	assert.Equal(t, "Code: .", out)
}

func TestSubstituteUnknownPlaceholderFails(t *testing.T) {
	_, err := Substitute("Hi {nickname}", testRecipient().PlaceholderValues())
	var cerr *CompositionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "nickname", cerr.Placeholder)
}

func TestToHTMLWrapsPlainText(t *testing.T) {
	out := ToHTML("line one\nline two")
	assert.Contains(t, out, "<html>")
	assert.Contains(t, out, "charset=utf-8")
	assert.Contains(t, out, "line one<br>\nline two")
}

func TestToHTMLPassesThroughDocuments(t *testing.T) {
	doc := "<HTML><body>already html</body></HTML>"
	assert.Equal(t, doc, ToHTML(doc))
}

func TestInjectPixelBeforeClosingBody(t *testing.T) {
	c := New(baseURL)
	out := c.InjectPixel("<html><body>hi</BODY></html>", "tok-1")
	require.Contains(t, out, baseURL+"/track/pixel/tok-1/")
	assert.Less(t, strings.Index(out, "/track/pixel/"), strings.Index(out, "</BODY>"))
}

func TestInjectPixelAppendsWithoutBody(t *testing.T) {
	c := New(baseURL)
	out := c.InjectPixel("no markup here", "tok-1")
	assert.True(t, strings.HasSuffix(out, `style="display:none;" />`))
}

func TestRewriteLinks(t *testing.T) {
	c := New(baseURL)
	out := c.RewriteLinks(`<a href="https://shop.example.com/sale?x=1">Sale</a>`, "tok-1")
	assert.Contains(t, out, baseURL+"/track/click/tok-1/?url=")
	assert.Contains(t, out, "url=https%3A%2F%2Fshop.example.com%2Fsale%3Fx%3D1")
	assert.NotContains(t, out, `href="https://shop.example.com`)
}

func TestRewriteLinksSingleQuotes(t *testing.T) {
	c := New(baseURL)
	out := c.RewriteLinks(`<a href='https://shop.example.com/'>Sale</a>`, "tok-1")
	assert.Contains(t, out, "/track/click/tok-1/")
}

func TestRewriteLinksIdempotent(t *testing.T) {
	c := New(baseURL)
	once := c.RewriteLinks(`<a href="https://shop.example.com/">Sale</a>`, "tok-1")
	twice := c.RewriteLinks(once, "tok-1")
	assert.Equal(t, once, twice)
}

func TestRewriteLinksSkipsPixel(t *testing.T) {
	c := New(baseURL)
	in := `<a href="` + c.PixelURL("tok-1") + `">x</a>`
	assert.Equal(t, in, c.RewriteLinks(in, "tok-1"))
}

func TestCompose(t *testing.T) {
	c := New(baseURL)
	tpl := &domain.Template{
		Subject: "Welcome",
		Body:    "Hello {first_name},\nvisit <a href=\"https://shop.example.com/\">our shop</a>",
	}

	text, html, err := c.Compose(tpl, testRecipient(), "tok-9")
	require.NoError(t, err)

	assert.Equal(t, "Hello John,\nvisit <a href=\"https://shop.example.com/\">our shop</a>", text)
	assert.Contains(t, html, "/track/pixel/tok-9/")
	assert.Contains(t, html, "/track/click/tok-9/")
	assert.NotContains(t, html, `href="https://shop.example.com/"`)
}

func TestComposeUnknownPlaceholder(t *testing.T) {
	c := New(baseURL)
	tpl := &domain.Template{Body: "Hi {unknown_field}"}
	_, _, err := c.Compose(tpl, testRecipient(), "tok-9")
	require.Error(t, err)
}
