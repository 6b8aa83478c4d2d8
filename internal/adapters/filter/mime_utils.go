package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
)

// gmailLabelsHeader carries provider labels in Google Takeout mbox exports
const gmailLabelsHeader = "X-Gmail-Labels"

var headerDecoder = &mime.WordDecoder{}

// ParseMessage converts a raw RFC 5322 message into an EmailRecord. The
// envelope sender and recipients are used when the headers lack them.
func ParseMessage(raw []byte, envelopeFrom string, envelopeTo []string, text *utils.TextProcessor) (*core.EmailRecord, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	record := &core.EmailRecord{
		ID:      strings.Trim(msg.Header.Get("Message-Id"), "<> "),
		Headers: make(map[string][]string, len(msg.Header)),
	}
	for key, values := range msg.Header {
		record.Headers[textproto.CanonicalMIMEHeaderKey(key)] = values
	}

	record.From = decodeEncodedHeader(msg.Header.Get("From"))
	if record.From == "" {
		record.From = envelopeFrom
	}
	record.Subject = decodeEncodedHeader(msg.Header.Get("Subject"))

	if len(envelopeTo) > 0 {
		record.To = append([]string(nil), envelopeTo...)
	} else if list, err := msg.Header.AddressList("To"); err == nil {
		for _, a := range list {
			record.To = append(record.To, a.Address)
		}
	}

	record.NativeLabels = parseLabels(msg.Header.Get(gmailLabelsHeader))

	plain, htmlBody := extractBodies(textproto.MIMEHeader(msg.Header), msg.Body)
	switch {
	case strings.TrimSpace(plain) != "":
		record.Body = text.SanitizeUTF8(plain)
	case htmlBody != "":
		record.Body = text.HTMLToText(text.SanitizeUTF8(htmlBody))
	}

	return record, nil
}

// extractBodies walks a MIME tree and returns the first text/plain and
// text/html bodies, transfer-decoded. Attachments are skipped.
func extractBodies(header textproto.MIMEHeader, body io.Reader) (plain, htmlBody string) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", ""
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			p, h := extractBodies(part.Header, part)
			if plain == "" {
				plain = p
			}
			if htmlBody == "" {
				htmlBody = h
			}
		}
		return plain, htmlBody
	}

	if disposition, _, _ := mime.ParseMediaType(header.Get("Content-Disposition")); disposition == "attachment" {
		return "", ""
	}

	data, err := io.ReadAll(transferDecoder(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", ""
	}

	switch mediaType {
	case "text/plain":
		return string(data), ""
	case "text/html":
		return "", string(data)
	default:
		return "", ""
	}
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// decodeEncodedHeader decodes RFC 2047 encoded words, returning the raw
// value when it cannot be decoded
func decodeEncodedHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// parseLabels splits a comma separated label header
func parseLabels(value string) []string {
	var labels []string
	for _, l := range strings.Split(decodeEncodedHeader(value), ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
