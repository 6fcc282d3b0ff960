package channel

import (
	"bytes"
	"encoding/base64"
	"mime"
	"net/mail"
)

func formatFrom(name, addr string) string {
	if addr == "" {
		return ""
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}

// buildMIME renders a single-part HTML message. Headers are RFC 2047
// encoded and the body is base64 with 76-column lines.
func buildMIME(from, to, subject, html string) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(html))
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	return b.Bytes()
}
