package transport

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildMIME assembles a multipart/alternative message with a plain-text and
// an HTML part. The plain part comes first so that clients prefer HTML.
func BuildMIME(from string, to []string, subject, text, html string) []byte {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	domain := "mailspool.local"
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domain = from[at+1:]
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.New(), domain)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	writePart(mw, "text/plain; charset=utf-8", text)
	writePart(mw, "text/html; charset=utf-8", html)
	mw.Close()

	return buf.Bytes()
}

func writePart(mw *multipart.Writer, contentType, body string) {
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Transfer-Encoding", "8bit")
	w, err := mw.CreatePart(hdr)
	if err != nil {
		return
	}
	w.Write([]byte(body))
}
