package mailcode

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxBody = 2 << 20

// ParseMessage returns the subject and readable text of an RFC 822
// message. HTML parts are reduced to their text; plain parts win.
func ParseMessage(raw []byte) (subject, text string) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", string(raw)
	}
	subject = decodeHeader(msg.Header.Get("Subject"))
	body, _ := io.ReadAll(io.LimitReader(msg.Body, maxBody))

	plain, html := textParts(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), body)
	switch {
	case plain != "":
		return subject, plain
	case html != "":
		return subject, htmlText(html)
	}
	return subject, string(body)
}

func textParts(contentType, encoding string, body []byte) (plain, html string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(decode(body, encoding)), ""
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			b, _ := io.ReadAll(io.LimitReader(part, maxBody))
			p, h := textParts(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), b)
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
		}
		return plain, html
	case mediaType == "text/html":
		return "", string(decode(body, encoding))
	default:
		return string(decode(body, encoding)), ""
	}
}

func decode(b []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		if out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(b))); err == nil {
			return out
		}
	case "base64":
		clean := strings.Join(strings.Fields(string(b)), "")
		if out, err := base64.StdEncoding.DecodeString(clean); err == nil {
			return out
		}
	}
	return b
}

func decodeHeader(s string) string {
	if out, err := new(mime.WordDecoder).DecodeHeader(s); err == nil {
		return out
	}
	return s
}

func htmlText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
