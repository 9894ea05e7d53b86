package filter

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// extractTextFromMessage pulls the text content out of an email message.
// For multipart messages it concatenates the text/plain parts; anything
// else falls back to the raw body.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readAllString(msg.Body)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return readAllString(msg.Body)
	}

	mr := multipart.NewReader(msg.Body, boundary)
	var textContent bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed part boundary; keep whatever text was found
			break
		}

		partContentType := strings.ToLower(part.Header.Get("Content-Type"))
		if !strings.Contains(partContentType, "text/plain") {
			continue
		}
		partBytes, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		textContent.Write(partBytes)
		textContent.WriteString("\n")
	}

	if textContent.Len() == 0 {
		return "", nil
	}
	return textContent.String(), nil
}

func readAllString(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
